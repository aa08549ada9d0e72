// Package version reports build metadata.
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `rehearse version`.
func String() string {
	return "rehearse " + resolved() + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies the client to the interview service.
func UserAgent() string {
	return "rehearse/" + resolved()
}

// resolved falls back to the module version for `go install` builds, which
// carry no ldflags.
func resolved() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return Version
}
