package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/rbright/rehearse/internal/failure"
)

// ResultFunc receives the finalized text accumulated since Start and the
// provisional text of the most recent event.
type ResultFunc func(final string, interim string)

// ErrorFunc receives an engine error kind.
type ErrorFunc func(kind string)

// Capture owns at most one active recognition run and its answer buffer.
type Capture struct {
	engine Engine

	mu       sync.Mutex
	active   bool
	live     uint64
	gen      uint64
	final    strings.Builder
	onResult ResultFunc
	onError  ErrorFunc
}

// NewCapture wraps engine. A nil engine yields a capture whose Start always
// fails with failure.ErrUnsupportedCapability.
func NewCapture(engine Engine) *Capture {
	return &Capture{engine: engine}
}

// Supported reports whether a recognition engine is available.
func (c *Capture) Supported() bool {
	return c != nil && c.engine != nil
}

// SetOnResult installs the result callback.
func (c *Capture) SetOnResult(fn ResultFunc) {
	c.mu.Lock()
	c.onResult = fn
	c.mu.Unlock()
}

// SetOnError installs the error callback.
func (c *Capture) SetOnError(fn ErrorFunc) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Active reports whether a capture run is in progress.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start begins a capture run. It is a no-op while one is already active.
// Engine failures are reported through the error callback, not returned.
func (c *Capture) Start(ctx context.Context) error {
	if !c.Supported() {
		return failure.ErrUnsupportedCapability
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = true
	c.gen++
	c.live = c.gen
	c.final.Reset()
	gen := c.gen
	c.mu.Unlock()

	err := c.engine.Start(ctx, Handlers{
		OnEvent: func(ev Event) { c.handleEvent(gen, ev) },
		OnError: func(kind string) { c.handleError(gen, kind) },
		OnEnd:   func() { c.handleEnd(gen) },
	})
	if err == nil {
		// A Stop that landed while the engine was starting only reached the
		// previous run; stop this one now that it exists.
		c.mu.Lock()
		stopped := c.live != gen || !c.active
		c.mu.Unlock()
		if stopped {
			return c.engine.Stop()
		}
		return nil
	}

	c.mu.Lock()
	if c.live == gen {
		c.active = false
		c.live = 0
	}
	onError := c.onError
	c.mu.Unlock()

	if onError != nil {
		onError(ErrorKind(err))
	}
	return nil
}

// Stop ends the active run. It is safe to call at any time. Events already
// in flight for the stopped run may still arrive until the engine ends.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.mu.Unlock()

	if err := c.engine.Stop(); err != nil {
		return err
	}
	return nil
}

func (c *Capture) handleEvent(gen uint64, ev Event) {
	c.mu.Lock()
	if gen != c.live {
		c.mu.Unlock()
		return
	}

	var interim strings.Builder
	for _, seg := range ev.Segments {
		if seg.Final {
			c.final.WriteString(seg.Text)
			c.final.WriteString(" ")
			continue
		}
		interim.WriteString(seg.Text)
	}
	final := c.final.String()
	onResult := c.onResult
	c.mu.Unlock()

	if onResult != nil {
		onResult(final, interim.String())
	}
}

func (c *Capture) handleError(gen uint64, kind string) {
	c.mu.Lock()
	if gen != c.live {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.live = 0
	onError := c.onError
	c.mu.Unlock()

	if onError != nil {
		onError(kind)
	}
}

func (c *Capture) handleEnd(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.live {
		return
	}
	c.active = false
	c.live = 0
}
