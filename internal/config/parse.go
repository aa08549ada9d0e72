package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type fileConfig struct {
	API       *fileAPI       `json:"api"`
	Speech    *fileSpeech    `json:"speech"`
	Audio     *fileAudio     `json:"audio"`
	TTS       *fileTTS       `json:"tts"`
	Indicator *fileIndicator `json:"indicator"`
	Events    *fileEvents    `json:"events"`
	Store     *fileStore     `json:"store"`
	Report    *fileReport    `json:"report"`
	Debug     *fileDebug     `json:"debug"`
}

type fileAPI struct {
	BaseURL   *string `json:"base_url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type fileSpeech struct {
	Enable               *bool      `json:"enable"`
	RivaGRPC             *string    `json:"riva_grpc"`
	LanguageCode         *string    `json:"language_code"`
	Model                *string    `json:"model"`
	AutomaticPunctuation *bool      `json:"automatic_punctuation"`
	Vocab                *fileVocab `json:"vocab"`
}

type fileVocab struct {
	Global     *stringList             `json:"global"`
	MaxPhrases *int                    `json:"max_phrases"`
	Sets       map[string]fileVocabSet `json:"sets"`
}

type fileVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type fileAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type fileTTS struct {
	Enable     *bool    `json:"enable"`
	URL        *string  `json:"url"`
	Voice      *string  `json:"voice"`
	Speed      *float32 `json:"speed"`
	SampleRate *int     `json:"sample_rate"`
	TimeoutMS  *int     `json:"timeout_ms"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
	Submap         *string `json:"submap"`
}

type fileEvents struct {
	NATSURL       *string `json:"nats_url"`
	SubjectPrefix *string `json:"subject_prefix"`
}

type fileStore struct {
	Path *string `json:"path"`
}

type fileReport struct {
	Format      *string `json:"format"`
	ShowHistory *bool   `json:"show_history"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

// stringList accepts either a JSON array or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return errors.New("expected string array or comma-delimited string")
	}
	out := []string{}
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// Parse overlays JSONC content onto base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg := base
	if strings.TrimSpace(content) != "" {
		normalized, err := normalizeJSONC(content)
		if err != nil {
			return Config{}, nil, err
		}
		var payload fileConfig
		if err := decodeStrict(normalized, &payload); err != nil {
			return Config{}, nil, err
		}
		if err := payload.applyTo(&cfg); err != nil {
			return Config{}, nil, err
		}
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setMillis(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Millisecond
	}
}

func (p fileConfig) applyTo(cfg *Config) error {
	if a := p.API; a != nil {
		setTrimmed(&cfg.API.BaseURL, a.BaseURL)
		setMillis(&cfg.API.Timeout, a.TimeoutMS)
	}

	if s := p.Speech; s != nil {
		set(&cfg.Speech.Enable, s.Enable)
		setTrimmed(&cfg.Speech.RivaGRPC, s.RivaGRPC)
		setTrimmed(&cfg.Speech.LanguageCode, s.LanguageCode)
		setTrimmed(&cfg.Speech.Model, s.Model)
		set(&cfg.Speech.AutomaticPunctuation, s.AutomaticPunctuation)
		if s.Vocab != nil {
			if err := s.Vocab.applyTo(&cfg.Speech.Vocab); err != nil {
				return err
			}
		}
	}

	if a := p.Audio; a != nil {
		set(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.Fallback, a.Fallback)
	}

	if t := p.TTS; t != nil {
		set(&cfg.TTS.Enable, t.Enable)
		setTrimmed(&cfg.TTS.URL, t.URL)
		setTrimmed(&cfg.TTS.Voice, t.Voice)
		set(&cfg.TTS.Speed, t.Speed)
		set(&cfg.TTS.SampleRate, t.SampleRate)
		setMillis(&cfg.TTS.Timeout, t.TimeoutMS)
	}

	if i := p.Indicator; i != nil {
		set(&cfg.Indicator.Enable, i.Enable)
		setTrimmed(&cfg.Indicator.Backend, i.Backend)
		setTrimmed(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		set(&cfg.Indicator.SoundEnable, i.SoundEnable)
		set(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
		setTrimmed(&cfg.Indicator.Submap, i.Submap)
	}

	if e := p.Events; e != nil {
		setTrimmed(&cfg.Events.NATSURL, e.NATSURL)
		setTrimmed(&cfg.Events.SubjectPrefix, e.SubjectPrefix)
	}

	if s := p.Store; s != nil {
		setTrimmed(&cfg.Store.Path, s.Path)
	}

	if r := p.Report; r != nil {
		if r.Format != nil {
			cfg.Report.Format = strings.ToLower(strings.TrimSpace(*r.Format))
		}
		set(&cfg.Report.ShowHistory, r.ShowHistory)
	}

	if d := p.Debug; d != nil {
		set(&cfg.Debug.EnableAudioDump, d.AudioDump)
		set(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}
	return nil
}

func (v fileVocab) applyTo(dst *VocabConfig) error {
	if v.Global != nil {
		dst.GlobalSets = nil
		for _, name := range *v.Global {
			if name = strings.TrimSpace(name); name != "" {
				dst.GlobalSets = append(dst.GlobalSets, name)
			}
		}
	}
	set(&dst.MaxPhrases, v.MaxPhrases)

	if len(v.Sets) == 0 {
		return nil
	}
	sets := make(map[string]VocabSet, len(dst.Sets)+len(v.Sets))
	for name, existing := range dst.Sets {
		sets[name] = existing
	}
	for name, raw := range v.Sets {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("speech.vocab.sets contains an empty set name")
		}
		entry := VocabSet{Name: name, Phrases: append([]string(nil), raw.Phrases...)}
		set(&entry.Boost, raw.Boost)
		sets[name] = entry
	}
	dst.Sets = sets
	return nil
}
