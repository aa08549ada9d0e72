// Package tts reads questions aloud through a Kokoro-compatible speech
// endpoint and PulseAudio playback.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/speech"
)

var _ speech.Synthesizer = (*Kokoro)(nil)

type speechRequest struct {
	Model  string  `json:"model"`
	Input  string  `json:"input"`
	Voice  string  `json:"voice,omitempty"`
	Format string  `json:"response_format"`
	Speed  float32 `json:"speed,omitempty"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}

// PlayFunc plays mono s16le PCM at rate.
type PlayFunc func(ctx context.Context, pcm []byte, rate int) error

// Kokoro synthesizes speech over HTTP and plays the returned PCM.
type Kokoro struct {
	baseURL    string
	voice      string
	speed      float32
	sampleRate int
	client     *http.Client
	play       PlayFunc
	logger     *slog.Logger
}

// New builds a client from cfg. play defaults to PulseAudio output.
func New(cfg config.TTSConfig, logger *slog.Logger, play PlayFunc) (*Kokoro, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("kokoro tts url cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	if play == nil {
		play = func(ctx context.Context, pcm []byte, rate int) error {
			return audio.PlayPCM(ctx, pcm, rate, "rehearse question")
		}
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 24000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Kokoro{
		baseURL:    base,
		voice:      cfg.Voice,
		speed:      cfg.Speed,
		sampleRate: rate,
		client:     &http.Client{Timeout: timeout},
		play:       play,
		logger:     logger,
	}, nil
}

// Say synthesizes text and blocks until playback ends.
func (k *Kokoro) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	started := time.Now()
	pcm, err := k.synthesize(ctx, text)
	if err != nil {
		return err
	}
	k.logger.DebugContext(ctx, "tts synthesis complete",
		"voice", k.voice,
		"text_length", len(text),
		"pcm_bytes", len(pcm),
		"processing_time", time.Since(started),
	)
	if err := k.play(ctx, pcm, k.sampleRate); err != nil {
		return fmt.Errorf("play synthesized speech: %w", err)
	}
	return nil
}

func (k *Kokoro) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model:  "kokoro",
		Input:  text,
		Voice:  k.voice,
		Format: "pcm",
		Speed:  k.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tts request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	return pcm, nil
}

// Voices lists the voices the server offers.
func (k *Kokoro) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/audio/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voices request failed with status %d", resp.StatusCode)
	}

	var out voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	return out.Voices, nil
}

// Close releases idle connections.
func (k *Kokoro) Close() error {
	k.client.CloseIdleConnections()
	return nil
}
