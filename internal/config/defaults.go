package config

import "time"

// Report formats accepted by report.format.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: 30 * time.Second,
		},
		Speech: SpeechConfig{
			Enable:               true,
			RivaGRPC:             "127.0.0.1:50051",
			LanguageCode:         "en-US",
			AutomaticPunctuation: true,
			Vocab: VocabConfig{
				Sets:       map[string]VocabSet{},
				MaxPhrases: 1024,
			},
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		TTS: TTSConfig{
			Enable:     true,
			URL:        "http://127.0.0.1:8880/v1",
			Voice:      "af_heart",
			Speed:      1.0,
			SampleRate: 24000,
			Timeout:    20 * time.Second,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "rehearse-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Events: EventsConfig{
			SubjectPrefix: "rehearse.session",
		},
		Report: ReportConfig{
			Format:      FormatText,
			ShowHistory: true,
		},
	}
}
