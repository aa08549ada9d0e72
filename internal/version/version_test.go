package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildMetadata(t *testing.T) {
	originalVersion := Version
	originalCommit := Commit
	originalDate := Date
	t.Cleanup(func() {
		Version = originalVersion
		Commit = originalCommit
		Date = originalDate
	})

	Version = "1.2.3"
	Commit = "abc123"
	Date = "2026-02-18"

	got := String()
	require.Contains(t, got, "rehearse 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "date=2026-02-18")
	require.Contains(t, got, "go=")
	require.Equal(t, "rehearse/1.2.3", UserAgent())
}

func TestDevBuildKeepsPlaceholder(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })
	Version = "dev"

	require.True(t, strings.HasPrefix(UserAgent(), "rehearse/"))
	require.NotEqual(t, "rehearse/", UserAgent())
}
