package speech

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
)

// Synthesizer vocalizes text and returns once playback finishes.
type Synthesizer interface {
	Say(ctx context.Context, text string) error
}

// Speaker is the fire-and-forget playback contract.
type Speaker interface {
	Speak(text string)
}

// Silent discards every utterance.
type Silent struct{}

func (Silent) Speak(string) {}

var (
	_ Speaker = Silent{}
	_ Speaker = (*Player)(nil)
)

// Player queues utterances for a single playback worker.
type Player struct {
	synth  Synthesizer
	logger *slog.Logger

	mu      sync.Mutex
	pending []string
	running bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	idle    *sync.Cond
}

// NewPlayer builds a player. A nil synth makes Speak a no-op.
func NewPlayer(synth Synthesizer, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{synth: synth, logger: logger, ctx: ctx, cancel: cancel}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// Speak enqueues text and returns immediately.
func (p *Player) Speak(text string) {
	text = strings.TrimSpace(text)
	if p == nil || p.synth == nil || text == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = append(p.pending, text)
	if !p.running {
		p.running = true
		go p.drain()
	}
}

// Wait blocks until every queued utterance has been played or dropped.
func (p *Player) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running {
		p.idle.Wait()
	}
}

// Close drops queued utterances and interrupts the current one.
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.pending = nil
	p.mu.Unlock()
	p.cancel()
}

func (p *Player) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 || p.closed {
			p.pending = nil
			p.running = false
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		text := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		if err := p.synth.Say(p.ctx, text); err != nil {
			p.logger.Debug("speech playback failed", "error", err.Error(), "chars", len(text))
		}
	}
}
