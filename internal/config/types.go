// Package config resolves, parses, validates, and defaults rehearse configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	API       APIConfig
	Speech    SpeechConfig
	Audio     AudioConfig
	TTS       TTSConfig
	Indicator IndicatorConfig
	Events    EventsConfig
	Store     StoreConfig
	Report    ReportConfig
	Debug     DebugConfig
}

// APIConfig locates the interview service.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	// Token overrides the stored login token when set.
	Token string
}

// SpeechConfig controls the Riva recognizer.
type SpeechConfig struct {
	Enable               bool
	RivaGRPC             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	Vocab                VocabConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// TTSConfig controls question read-back.
type TTSConfig struct {
	Enable     bool
	URL        string
	Voice      string
	Speed      float32
	SampleRate int
	Timeout    time.Duration
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
	// Submap is the Hyprland submap entered while an interview runs.
	Submap string
}

// EventsConfig controls the optional NATS session event feed.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// StoreConfig locates the local SQLite state file.
type StoreConfig struct {
	Path string
}

// ReportConfig sets report rendering defaults.
type ReportConfig struct {
	Format      string
	ShowHistory bool
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to the recognizer.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
