package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestParseOverlaysSections(t *testing.T) {
	cfg, warnings, err := Parse(`{
  // interview service
  "api": {"base_url": " https://interview.example.com ", "timeout_ms": 5000},
  "speech": {
    "riva_grpc": "riva:50051",
    "model": " parakeet ",
    "vocab": {
      "global": "tech, people",
      "sets": {
        "tech": {"boost": 12, "phrases": ["Kubernetes", "gRPC"]},
        "people": {"boost": 5, "phrases": ["Kubernetes"]},
      },
    },
  },
  "tts": {"voice": "bf_emma", "speed": 1.2, "timeout_ms": 9000},
  "indicator": {"backend": " desktop ", "submap": " rehearse "},
  "events": {"nats_url": "nats://127.0.0.1:4222"},
  "store": {"path": "/tmp/rehearse.db"},
  "report": {"format": " Markdown ", "show_history": false},
  "debug": {"grpc_dump": true},
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, "https://interview.example.com", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, "riva:50051", cfg.Speech.RivaGRPC)
	require.Equal(t, "parakeet", cfg.Speech.Model)
	require.Equal(t, []string{"tech", "people"}, cfg.Speech.Vocab.GlobalSets)
	require.Equal(t, "bf_emma", cfg.TTS.Voice)
	require.InDelta(t, 1.2, cfg.TTS.Speed, 0.0001)
	require.Equal(t, 9*time.Second, cfg.TTS.Timeout)
	require.Equal(t, "desktop", cfg.Indicator.Backend)
	require.Equal(t, "rehearse", cfg.Indicator.Submap)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	require.Equal(t, "/tmp/rehearse.db", cfg.Store.Path)
	require.Equal(t, FormatMarkdown, cfg.Report.Format)
	require.False(t, cfg.Report.ShowHistory)
	require.True(t, cfg.Debug.EnableGRPCDump)
	require.False(t, cfg.Debug.EnableAudioDump)

	phrases, _, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Equal(t, []SpeechPhrase{{Phrase: "Kubernetes", Boost: 12}, {Phrase: "gRPC", Boost: 12}}, phrases)
}

func TestParseEmptyContentValidatesBase(t *testing.T) {
	cfg, _, err := Parse("   ", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	base := Default()
	base.API.BaseURL = ""
	_, _, err = Parse("", base)
	require.ErrorContains(t, err, "api.base_url")
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, _, err := Parse(`{"paste": {"enable": true}}`, Default())
	require.ErrorContains(t, err, "unknown field")
}

func TestParseTypeErrorIncludesLocation(t *testing.T) {
	_, _, err := Parse(`{
  "speech": {"riva_grpc": 123}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
	require.Contains(t, err.Error(), "column")
}

func TestParseRejectsEmptyVocabSetName(t *testing.T) {
	_, _, err := Parse(`{"speech":{"vocab":{"sets":{" ":{"phrases":["x"]}}}}}`, Default())
	require.ErrorContains(t, err, "empty set name")
}

func TestStringListUnmarshal(t *testing.T) {
	var list stringList
	require.NoError(t, list.UnmarshalJSON([]byte(`["a","b"]`)))
	require.Equal(t, []string{"a", "b"}, []string(list))

	require.NoError(t, list.UnmarshalJSON([]byte(`"a, b, , c"`)))
	require.Equal(t, []string{"a", "b", "c"}, []string(list))

	require.ErrorContains(t, list.UnmarshalJSON([]byte(`123`)), "expected string array")
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "relative api url", mutate: func(c *Config) { c.API.BaseURL = "/api" }, wantErr: "api.base_url"},
		{name: "zero api timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "api.timeout_ms"},
		{name: "empty riva endpoint", mutate: func(c *Config) { c.Speech.RivaGRPC = " " }, wantErr: "speech.riva_grpc"},
		{name: "empty language", mutate: func(c *Config) { c.Speech.LanguageCode = "" }, wantErr: "language_code"},
		{name: "max phrases", mutate: func(c *Config) { c.Speech.Vocab.MaxPhrases = 0 }, wantErr: "max_phrases"},
		{name: "tts url", mutate: func(c *Config) { c.TTS.URL = "kokoro" }, wantErr: "tts.url"},
		{name: "tts speed", mutate: func(c *Config) { c.TTS.Speed = 0 }, wantErr: "tts.speed"},
		{name: "tts sample rate", mutate: func(c *Config) { c.TTS.SampleRate = 0 }, wantErr: "tts.sample_rate"},
		{name: "backend", mutate: func(c *Config) { c.Indicator.Backend = "waybar" }, wantErr: "indicator.backend"},
		{name: "desktop app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
		{name: "error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout_ms"},
		{name: "subject prefix", mutate: func(c *Config) {
			c.Events.NATSURL = "nats://x"
			c.Events.SubjectPrefix = ""
		}, wantErr: "subject_prefix"},
		{name: "report format", mutate: func(c *Config) { c.Report.Format = "html" }, wantErr: "report.format"},
		{name: "unknown vocab set", mutate: func(c *Config) { c.Speech.Vocab.GlobalSets = []string{"nope"} }, wantErr: "unknown set"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestValidateSkipsDisabledSections(t *testing.T) {
	cfg := Default()
	cfg.Speech.Enable = false
	cfg.Speech.RivaGRPC = ""
	cfg.TTS.Enable = false
	cfg.TTS.URL = ""

	_, err := Validate(cfg)
	require.NoError(t, err)
}

func TestBuildSpeechPhrasesSortedAndHighestBoostWins(t *testing.T) {
	cfg := Default()
	cfg.Speech.Vocab.GlobalSets = []string{"core", "team"}
	cfg.Speech.Vocab.Sets["core"] = VocabSet{Name: "core", Boost: 10, Phrases: []string{"beta", "alpha"}}
	cfg.Speech.Vocab.Sets["team"] = VocabSet{Name: "team", Boost: 20, Phrases: []string{"alpha", " gamma "}}

	phrases, warnings, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, []SpeechPhrase{
		{Phrase: "alpha", Boost: 20},
		{Phrase: "beta", Boost: 10},
		{Phrase: "gamma", Boost: 20},
	}, phrases)
}

func TestBuildSpeechPhrasesEnforcesLimit(t *testing.T) {
	cfg := Default()
	cfg.Speech.Vocab.MaxPhrases = 1
	cfg.Speech.Vocab.GlobalSets = []string{"core"}
	cfg.Speech.Vocab.Sets["core"] = VocabSet{Name: "core", Phrases: []string{"a", "b"}}

	_, _, err := BuildSpeechPhrases(cfg)
	require.ErrorContains(t, err, "exceeds")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvAPIURL:  "https://api.example.com",
		EnvToken:   " jwt-token ",
		EnvNATSURL: "",
	}
	cfg := Default()
	warnings := ApplyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	require.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	require.Equal(t, "jwt-token", cfg.API.Token)
	require.Empty(t, cfg.Events.NATSURL)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, EnvNATSURL)
}

func TestLoadDotEnvDoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REHEARSE_TEST_A=from-file\nREHEARSE_TEST_B=from-file\n"), 0o600))
	t.Setenv("REHEARSE_TEST_A", "from-env")
	t.Setenv("REHEARSE_TEST_B", "")
	require.NoError(t, os.Unsetenv("REHEARSE_TEST_B"))

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "from-env", os.Getenv("REHEARSE_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("REHEARSE_TEST_B"))
	require.NoError(t, os.Unsetenv("REHEARSE_TEST_B"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestResolvePathPrecedence(t *testing.T) {
	resolved, err := ResolvePath("/tmp/custom.jsonc")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.jsonc", resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "rehearse", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "rehearse", "config.jsonc"), resolved)
}

func TestStorePath(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	p, err := StorePath(Default())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(state, "rehearse", "rehearse.db"), p)

	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := Default()
	cfg.Store.Path = "~/data/r.db"
	p, err = StorePath(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "data", "r.db"), p)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://127.0.0.1:9999")
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
	require.Equal(t, "http://127.0.0.1:9999", loaded.Config.API.BaseURL)
}

func TestLoadExistingJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio": {"input": "elgato"}, "tts": {"enable": false}}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "elgato", loaded.Config.Audio.Input)
	require.False(t, loaded.Config.TTS.Enable)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadRejectsInvalidEnvironmentOverride(t *testing.T) {
	t.Setenv(EnvAPIURL, "not a url")
	_, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.ErrorContains(t, err, "environment overrides")
}
