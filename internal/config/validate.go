package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if err := validateURL("api.base_url", cfg.API.BaseURL); err != nil {
		return nil, err
	}
	if cfg.API.Timeout <= 0 {
		return nil, errors.New("api.timeout_ms must be > 0")
	}

	if cfg.Speech.Enable {
		if strings.TrimSpace(cfg.Speech.RivaGRPC) == "" {
			return nil, errors.New("speech.riva_grpc must not be empty when speech.enable=true")
		}
		if strings.TrimSpace(cfg.Speech.LanguageCode) == "" {
			return nil, errors.New("speech.language_code must not be empty")
		}
	}
	if cfg.Speech.Vocab.MaxPhrases <= 0 {
		return nil, errors.New("speech.vocab.max_phrases must be > 0")
	}

	if cfg.TTS.Enable {
		if err := validateURL("tts.url", cfg.TTS.URL); err != nil {
			return nil, err
		}
		if cfg.TTS.Speed <= 0 {
			return nil, errors.New("tts.speed must be > 0")
		}
		if cfg.TTS.SampleRate <= 0 {
			return nil, errors.New("tts.sample_rate must be > 0")
		}
		if cfg.TTS.Timeout <= 0 {
			return nil, errors.New("tts.timeout_ms must be > 0")
		}
		if strings.TrimSpace(cfg.TTS.Voice) == "" {
			warnings = append(warnings, Warning{Message: "tts.voice is empty; the server default voice will be used"})
		}
	}

	switch strings.ToLower(cfg.Indicator.Backend) {
	case "hypr":
	case "desktop":
		if strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
			return nil, errors.New("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
		}
	case "":
		return nil, errors.New("indicator.backend must not be empty")
	default:
		return nil, errors.New("indicator.backend must be one of: hypr, desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, errors.New("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Events.NATSURL != "" && strings.TrimSpace(cfg.Events.SubjectPrefix) == "" {
		return nil, errors.New("events.subject_prefix must not be empty when events.nats_url is set")
	}

	switch cfg.Report.Format {
	case FormatText, FormatMarkdown, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("report.format must be one of: %s, %s, %s, %s", FormatText, FormatMarkdown, FormatJSON, FormatYAML)
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	return append(warnings, vocabWarnings...), nil
}

func validateURL(key, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic phrase
// payloads. A phrase present in several sets keeps the highest boost.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	vocab := cfg.Speech.Vocab
	if len(vocab.GlobalSets) == 0 {
		return nil, nil, nil
	}

	type origin struct {
		boost float64
		set   string
	}

	var warnings []Warning
	chosen := make(map[string]origin)
	for _, name := range vocab.GlobalSets {
		vs, ok := vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("speech.vocab.global references unknown set %q", name)
		}
		for _, phrase := range vs.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			prev, seen := chosen[phrase]
			if !seen {
				chosen[phrase] = origin{boost: vs.Boost, set: name}
				continue
			}
			if vs.Boost > prev.boost {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, prev.set, name, vs.Boost)})
				chosen[phrase] = origin{boost: vs.Boost, set: name}
			}
		}
	}

	if len(chosen) > vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds speech.vocab.max_phrases=%d", len(chosen), vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(chosen))
	for phrase, o := range chosen {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(o.boost)})
	}
	sort.Slice(phrases, func(i, j int) bool { return phrases[i].Phrase < phrases[j].Phrase })
	return phrases, warnings, nil
}
