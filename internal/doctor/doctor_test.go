package doctor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/store"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Speech.Enable = false
	cfg.TTS.Enable = false
	cfg.Indicator.Enable = false
	cfg.Events.NATSURL = ""
	return cfg
}

func jwtToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestRunCoreChecks(t *testing.T) {
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "rehearse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Exists: true, Config: baseConfig()}, Deps{
		API:    fakeHealth{},
		Tokens: api.StaticToken(jwtToken(t, now.Add(3*time.Hour))),
		Store:  db,
		Now:    func() time.Time { return now },
	})

	require.True(t, report.OK(), report.String())
	require.Len(t, report.Checks, 4)
	text := report.String()
	require.Contains(t, text, `[OK] config: loaded "/tmp/config.jsonc"`)
	require.Contains(t, text, "[OK] api: healthy at http://127.0.0.1:5000")
	require.Contains(t, text, "[OK] credential: token expires 3 hours from now")
	require.Contains(t, text, "[OK] store: open at ")
}

func TestRunReportsFailures(t *testing.T) {
	report := Run(context.Background(), config.Loaded{Path: "/tmp/missing.jsonc", Config: baseConfig()}, Deps{
		API: fakeHealth{err: errors.New("health: transport error: connection refused")},
	})

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, `[OK] config: "/tmp/missing.jsonc" not found; using defaults`)
	require.Contains(t, text, "[FAIL] api: health: transport error")
	require.Contains(t, text, "[FAIL] credential: no credential source")
	require.Contains(t, text, "[FAIL] store: store unavailable")
}

func TestCheckCredential(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deps := func(token string) Deps {
		return Deps{Tokens: api.StaticToken(token), Now: func() time.Time { return now }}
	}

	check := checkCredential(context.Background(), deps(""))
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "rehearse login")

	check = checkCredential(context.Background(), deps("opaque"))
	require.True(t, check.Pass)
	require.Equal(t, "opaque token stored", check.Message)

	check = checkCredential(context.Background(), deps(jwtToken(t, now.Add(-48*time.Hour))))
	require.False(t, check.Pass)
	require.Equal(t, "token expired 2 days ago; run `rehearse login`", check.Message)
}

func TestCheckTTS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/audio/voices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":["af_heart","am_adam"]}`))
	}))
	t.Cleanup(server.Close)

	cfg := baseConfig()
	cfg.TTS.URL = server.URL + "/v1"
	cfg.TTS.Voice = "af_heart"
	check := checkTTS(context.Background(), cfg, time.Second)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "2 voice(s)")

	cfg.TTS.Voice = "bf_emma"
	check = checkTTS(context.Background(), cfg, time.Second)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, `voice "bf_emma" not offered`)
}

func TestCheckRivaReadyFailsWithoutServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	cfg := baseConfig()
	cfg.Speech.RivaGRPC = addr
	check := checkRivaReady(context.Background(), cfg, 150*time.Millisecond)
	require.False(t, check.Pass)
	require.Equal(t, "riva.ready", check.Name)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), baseConfig())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
}

func TestCheckIndicatorHypr(t *testing.T) {
	dir := t.TempDir()
	script := "#!/usr/bin/env bash\necho '{\"tag\":\"v0.45.0\"}'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hyprctl"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	cfg := baseConfig()
	cfg.Indicator.Enable = true
	cfg.Indicator.Backend = "hypr"

	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	check := checkIndicator(context.Background(), cfg)
	require.False(t, check.Pass)

	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "abc123")
	check = checkIndicator(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "running v0.45.0", check.Message)
}

func TestCheckIndicatorDesktopNeedsBusctl(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := baseConfig()
	cfg.Indicator.Backend = "desktop"

	check := checkIndicator(context.Background(), cfg)
	require.False(t, check.Pass)
	require.True(t, strings.HasPrefix(check.Message, "binary not found"))
}

func TestCheckNATSUnreachable(t *testing.T) {
	cfg := baseConfig()
	cfg.Events.NATSURL = "nats://127.0.0.1:1"

	check := checkNATS(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "connect to nats")
}

func TestCheckBinary(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")

	check = checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}
