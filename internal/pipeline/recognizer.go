// Package pipeline joins microphone capture and Riva streaming recognition
// into a speech.Engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/riva"
	"github.com/rbright/rehearse/internal/speech"
)

const drainTimeout = 20 * time.Second

// Source yields PCM frames until stopped.
type Source interface {
	Frames() <-chan []byte
	Stop() error
	PCM() []byte
	Bytes() int64
}

// Stream carries audio to the recognizer.
type Stream interface {
	SendAudio(chunk []byte) error
	CloseSend()
	Wait(ctx context.Context) error
	Cancel() error
}

type (
	sourceFunc func(ctx context.Context) (Source, error)
	streamFunc func(ctx context.Context, sink io.Writer, onEvent func(speech.Event)) (Stream, error)
)

var _ speech.Engine = (*Recognizer)(nil)

// Recognizer runs one capture -> ASR pass per Start/Stop pair.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	openSource sourceFunc
	openStream streamFunc

	mu  sync.Mutex
	cur *run
}

type run struct {
	source  Source
	stream  Stream
	handler speech.Handlers
	debug   *os.File
	done    chan struct{}
}

// NewRecognizer builds a recognizer backed by PulseAudio and Riva.
func NewRecognizer(cfg config.Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	r := &Recognizer{cfg: cfg, logger: logger}
	r.openSource = r.microphone
	r.openStream = r.riva
	return r
}

// Start waits for any previous pass to end, then opens the recognizer
// stream and the microphone. Failures come back as *failure.EngineError.
func (r *Recognizer) Start(ctx context.Context, h speech.Handlers) error {
	r.mu.Lock()
	prev := r.cur
	r.mu.Unlock()
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	cur := &run{handler: h, done: make(chan struct{})}

	var sink io.Writer
	if r.cfg.Debug.EnableGRPCDump {
		f, err := createDebugFile("grpc", "json")
		if err != nil {
			r.logger.Warn("unable to create grpc debug dump", "error", err)
		} else {
			cur.debug = f
			sink = f
		}
	}

	onEvent := func(ev speech.Event) {
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
	stream, err := r.openStream(runCtx, sink, onEvent)
	if err != nil {
		cur.closeDebug()
		return fmt.Errorf("open recognizer stream: %w", &failure.EngineError{Reason: speech.ErrorNetwork, Err: err})
	}
	cur.stream = stream

	source, err := r.openSource(runCtx)
	if err != nil {
		_ = stream.Cancel()
		cur.closeDebug()
		return fmt.Errorf("open microphone: %w", &failure.EngineError{Reason: speech.ErrorAudioCapture, Err: err})
	}
	cur.source = source

	r.cur = cur
	go r.pump(runCtx, cur)
	return nil
}

// Stop ends capture. Recognition results keep arriving until the server
// flushes, after which OnEnd fires.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		return nil
	}
	return cur.source.Stop()
}

// Wait blocks until the current pass has fully ended.
func (r *Recognizer) Wait(ctx context.Context) error {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		return nil
	}
	select {
	case <-cur.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump forwards frames to the stream, then drains recognition results.
func (r *Recognizer) pump(ctx context.Context, cur *run) {
	defer close(cur.done)

	var sendErr error
	for frame := range cur.source.Frames() {
		if len(frame) == 0 || sendErr != nil {
			continue
		}
		if err := cur.stream.SendAudio(frame); err != nil {
			sendErr = err
			_ = cur.source.Stop()
		}
	}

	cur.stream.CloseSend()
	waitCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	waitErr := cur.stream.Wait(waitCtx)
	cancel()

	r.logger.Info("recognition pass finished",
		"bytes_captured", cur.source.Bytes(),
		"send_error", errString(sendErr),
		"stream_error", errString(waitErr),
	)
	r.writeDebugAudio(cur.source.PCM())
	cur.closeDebug()

	if err := errors.Join(sendErr, waitErr); err != nil && cur.handler.OnError != nil {
		cur.handler.OnError(speech.ErrorNetwork)
	}
	if cur.handler.OnEnd != nil {
		cur.handler.OnEnd()
	}
}

func (r *Recognizer) microphone(ctx context.Context) (Source, error) {
	sel, err := audio.SelectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return nil, err
	}
	if sel.Warning != "" {
		r.logger.Warn(sel.Warning)
	}

	var opts []audio.RecordOption
	if r.cfg.Debug.EnableAudioDump {
		opts = append(opts, audio.KeepPCM())
	}
	rec, err := audio.Record(ctx, sel.Device, opts...)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("microphone open", "device", describeDevice(sel.Device))
	return rec, nil
}

func (r *Recognizer) riva(ctx context.Context, sink io.Writer, onEvent func(speech.Event)) (Stream, error) {
	phrases, _, err := config.BuildSpeechPhrases(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("build speech contexts: %w", err)
	}
	rivaPhrases := make([]riva.SpeechPhrase, 0, len(phrases))
	for _, p := range phrases {
		rivaPhrases = append(rivaPhrases, riva.SpeechPhrase{Phrase: p.Phrase, Boost: p.Boost})
	}

	stream, err := riva.DialStream(ctx, riva.StreamConfig{
		Endpoint:              r.cfg.Speech.RivaGRPC,
		LanguageCode:          r.cfg.Speech.LanguageCode,
		Model:                 r.cfg.Speech.Model,
		AutomaticPunctuation:  r.cfg.Speech.AutomaticPunctuation,
		SpeechPhrases:         rivaPhrases,
		DialTimeout:           3 * time.Second,
		DebugResponseSinkJSON: sink,
	}, onEvent)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *run) closeDebug() {
	if c.debug != nil {
		_ = c.debug.Close()
		c.debug = nil
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
