// Package doctor runs readiness diagnostics for config, services, audio and
// the desktop indicator.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/events"
	"github.com/rbright/rehearse/internal/hypr"
	"github.com/rbright/rehearse/internal/riva"
	"github.com/rbright/rehearse/internal/tts"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// HealthChecker checks the interview service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Pinger checks the local store.
type Pinger interface {
	Ping(ctx context.Context) error
	Path() string
}

// Deps are the live collaborators the checks exercise. Nil members are
// reported as failures.
type Deps struct {
	API     HealthChecker
	Tokens  api.TokenSource
	Store   Pinger
	Timeout time.Duration
	Now     func() time.Time
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, deps Deps) Report {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg := loaded.Config

	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkAPI(ctx, cfg, deps))
	checks = append(checks, checkCredential(ctx, deps))
	checks = append(checks, checkStore(ctx, deps.Store))

	if cfg.Speech.Enable {
		checks = append(checks, checkRivaReady(ctx, cfg, deps.Timeout))
		checks = append(checks, checkAudioSelection(ctx, cfg))
	}
	if cfg.TTS.Enable {
		checks = append(checks, checkTTS(ctx, cfg, deps.Timeout))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkIndicator(ctx, cfg))
	}
	if strings.TrimSpace(cfg.Events.NATSURL) != "" {
		checks = append(checks, checkNATS(cfg))
	}
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	msg := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		msg += fmt.Sprintf(" with %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

func checkAPI(ctx context.Context, cfg config.Config, deps Deps) Check {
	if deps.API == nil {
		return Check{Name: "api", Pass: false, Message: "client unavailable"}
	}
	callCtx, cancel := context.WithTimeout(ctx, deps.Timeout)
	defer cancel()
	if err := deps.API.Health(callCtx); err != nil {
		return Check{Name: "api", Pass: false, Message: err.Error()}
	}
	return Check{Name: "api", Pass: true, Message: fmt.Sprintf("healthy at %s", cfg.API.BaseURL)}
}

// checkCredential reports whether a bearer token is stored and, for JWTs,
// when it expires.
func checkCredential(ctx context.Context, deps Deps) Check {
	const name = "credential"
	if deps.Tokens == nil {
		return Check{Name: name, Pass: false, Message: "no credential source"}
	}
	token, err := deps.Tokens.Token(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if strings.TrimSpace(token) == "" {
		return Check{Name: name, Pass: false, Message: "not signed in; run `rehearse login`"}
	}

	info, err := api.InspectToken(token)
	if err != nil {
		return Check{Name: name, Pass: true, Message: "opaque token stored"}
	}
	now := deps.Now()
	switch {
	case info.ExpiresAt.IsZero():
		return Check{Name: name, Pass: true, Message: "token stored (no expiry)"}
	case info.Expired(now):
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("token expired %s; run `rehearse login`", humanize.RelTime(info.ExpiresAt, now, "ago", "from now"))}
	default:
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("token expires %s", humanize.RelTime(info.ExpiresAt, now, "ago", "from now"))}
	}
}

func checkStore(ctx context.Context, store Pinger) Check {
	if store == nil {
		return Check{Name: "store", Pass: false, Message: "store unavailable"}
	}
	if err := store.Ping(ctx); err != nil {
		return Check{Name: "store", Pass: false, Message: err.Error()}
	}
	return Check{Name: "store", Pass: true, Message: fmt.Sprintf("open at %s", store.Path())}
}

// checkRivaReady waits for the configured gRPC channel to become ready.
func checkRivaReady(ctx context.Context, cfg config.Config, timeout time.Duration) Check {
	endpoint := strings.TrimSpace(cfg.Speech.RivaGRPC)
	if err := riva.CheckReady(ctx, endpoint, timeout); err != nil {
		return Check{Name: "riva.ready", Pass: false, Message: err.Error()}
	}
	return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkTTS(ctx context.Context, cfg config.Config, timeout time.Duration) Check {
	client, err := tts.New(cfg.TTS, nil, nil)
	if err != nil {
		return Check{Name: "tts", Pass: false, Message: err.Error()}
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	voices, err := client.Voices(callCtx)
	if err != nil {
		return Check{Name: "tts", Pass: false, Message: err.Error()}
	}
	if voice := strings.TrimSpace(cfg.TTS.Voice); voice != "" && !slices.Contains(voices, voice) {
		return Check{Name: "tts", Pass: false, Message: fmt.Sprintf("voice %q not offered by %s", voice, cfg.TTS.URL)}
	}
	return Check{Name: "tts", Pass: true, Message: fmt.Sprintf("%d voice(s) at %s", len(voices), cfg.TTS.URL)}
}

func checkIndicator(ctx context.Context, cfg config.Config) Check {
	if strings.EqualFold(cfg.Indicator.Backend, "desktop") {
		return checkBinary("busctl", "desktop notifications use busctl")
	}
	if strings.TrimSpace(os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")) == "" {
		return Check{Name: "hyprland", Pass: false, Message: "HYPRLAND_INSTANCE_SIGNATURE is empty"}
	}
	tag, err := hypr.Version(ctx)
	if err != nil {
		return Check{Name: "hyprland", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprland", Pass: true, Message: "running " + tag}
}

func checkNATS(cfg config.Config) Check {
	pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, nil)
	if err != nil {
		return Check{Name: "events", Pass: false, Message: err.Error()}
	}
	defer pub.Close()
	return Check{Name: "events", Pass: true, Message: "publishing to " + pub.Subject("*")}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
