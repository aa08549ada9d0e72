// Package indicator mirrors interview progress on screen and with short
// audio cues.
package indicator

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/hypr"
	"github.com/rbright/rehearse/internal/session"
)

const (
	colorInfo    = "rgb(89b4fa)"
	colorBusy    = "rgb(cba6f7)"
	colorError   = "rgb(f38ba8)"
	colorSuccess = "rgb(a6e3a1)"

	stickyMS   = 300000
	completeMS = 4000
)

type backend interface {
	notify(ctx context.Context, icon, timeoutMS int, color, text string) error
	dismiss(ctx context.Context) error
}

type hyprBackend struct{}

func (hyprBackend) notify(ctx context.Context, icon, timeoutMS int, color, text string) error {
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (hyprBackend) dismiss(ctx context.Context) error {
	return hypr.DismissNotify(ctx)
}

var _ session.Observer = (*Indicator)(nil)

// Indicator is a session.Observer that drives Hyprland or desktop
// notifications and plays cues. Dispatch failures are logged at debug level.
type Indicator struct {
	cfg     config.IndicatorConfig
	logger  *slog.Logger
	msgs    messages
	backend backend
	play    func(context.Context, []int16) error

	soundMu sync.Mutex
	cues    sync.WaitGroup
}

// New builds an indicator for the configured backend.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	var b backend = hyprBackend{}
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		b = &desktopBackend{appName: cfg.DesktopAppName}
	}
	return &Indicator{
		cfg:     cfg,
		logger:  logger,
		msgs:    messagesFromEnv(),
		backend: b,
		play:    playCue,
	}
}

func (i *Indicator) QuestionLoaded(ctx context.Context, s session.Snapshot) {
	i.cue(cueReady)
	i.show(ctx, hypr.IconInfo, stickyMS, colorInfo, i.msgs.question(s.Cursor))
}

func (i *Indicator) TranscriptUpdated(context.Context, session.Snapshot) {}

func (i *Indicator) ListeningChanged(ctx context.Context, s session.Snapshot) {
	if s.Listening {
		i.cue(cueStart)
		i.show(ctx, hypr.IconInfo, stickyMS, colorInfo, i.msgs.listening)
		return
	}
	i.cue(cueStop)
	i.show(ctx, hypr.IconHint, stickyMS, colorBusy, i.msgs.paused)
}

func (i *Indicator) Submitting(ctx context.Context, _ session.Snapshot) {
	i.show(ctx, hypr.IconInfo, stickyMS, colorBusy, i.msgs.submitting)
}

func (i *Indicator) Failed(ctx context.Context, s session.Snapshot, _ error) {
	i.cue(cueError)
	timeout := i.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	i.show(ctx, hypr.IconError, timeout, colorError, i.msgs.failure(s.Kind))
}

func (i *Indicator) Completed(ctx context.Context, _ session.Snapshot) {
	i.cue(cueComplete)
	i.show(ctx, hypr.IconOK, completeMS, colorSuccess, i.msgs.complete)
}

// Close waits for queued cues and dismisses any sticky notification.
func (i *Indicator) Close(ctx context.Context) {
	i.cues.Wait()
	if i.cfg.Enable {
		i.run(ctx, i.backend.dismiss)
	}
}

func (i *Indicator) show(ctx context.Context, icon, timeoutMS int, color, text string) {
	if !i.cfg.Enable {
		return
	}
	i.run(ctx, func(ctx context.Context) error {
		return i.backend.notify(ctx, icon, timeoutMS, color, text)
	})
}

// run bounds one dispatch so a hung hyprctl or DBus call cannot stall the session.
func (i *Indicator) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := fn(runCtx); err != nil {
		i.logger.DebugContext(ctx, "indicator dispatch failed", "error", err)
	}
}

// cue plays asynchronously; cues never overlap.
func (i *Indicator) cue(kind cueKind) {
	if !i.cfg.SoundEnable {
		return
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return
	}
	i.cues.Add(1)
	go func() {
		defer i.cues.Done()
		i.soundMu.Lock()
		defer i.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := i.play(ctx, samples); err != nil {
			i.logger.Debug("indicator audio cue failed", "error", err)
		}
	}()
}
