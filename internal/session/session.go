// Package session sequences one interview: load question, capture answer,
// submit answer, advance or complete.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rbright/rehearse/internal/api"
	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/speech"
	"github.com/rbright/rehearse/internal/store"
)

var (
	// ErrSessionRequired means no upload has issued a session id yet.
	ErrSessionRequired = fmt.Errorf("%w: no interview session; upload a CV to start one", failure.ErrValidation)
	// ErrEmptyAnswer rejects a submission with no finalized speech.
	ErrEmptyAnswer = fmt.Errorf("%w: answer is empty; record an answer before submitting", failure.ErrValidation)
	// ErrBusy rejects a load or submit while another is in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrClosed is returned for work that finishes after Close.
	ErrClosed = errors.New("session closed")
	// ErrNothingToRetry means the controller is not in the errored state.
	ErrNothingToRetry = errors.New("nothing to retry")
)

// API is the subset of the interview service the controller drives.
type API interface {
	CurrentQuestion(ctx context.Context, sessionID string) (api.Question, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer string) (api.AnswerResult, error)
}

// Capture is the speech capture contract.
type Capture interface {
	Start(ctx context.Context) error
	Stop() error
	Active() bool
	SetOnResult(speech.ResultFunc)
	SetOnError(speech.ErrorFunc)
}

type action int

const (
	actionNone action = iota
	actionLoad
	actionSubmit
)

// Cursor is the server-reported position in the question sequence.
type Cursor struct {
	Question string
	Progress int
	Total    int
}

// ProgressText renders the cursor as "Question n of m".
func (c Cursor) ProgressText() string {
	if c.Progress <= 0 || c.Total <= 0 {
		return ""
	}
	return fmt.Sprintf("Question %d of %d", c.Progress, c.Total)
}

// Snapshot is a consistent view of controller state.
type Snapshot struct {
	State     fsm.State
	SessionID string
	Cursor    Cursor
	Final     string
	Interim   string
	Listening bool
	Err       error
	Kind      failure.Kind
}

// Controller owns session and cursor state for one interview.
type Controller struct {
	logger   *slog.Logger
	api      API
	capture  Capture
	speaker  speech.Speaker
	kv       store.KV
	observer Observer

	mu        sync.Mutex
	state     fsm.State
	sessionID string
	cursor    Cursor
	final     string
	interim   string
	accept    bool
	lastErr   error
	failed    action
	closed    bool

	completed    chan struct{}
	completeOnce sync.Once
}

// NewController constructs a controller with safe fallbacks for optional
// collaborators. A nil capture behaves as a host without recognition.
func NewController(
	logger *slog.Logger,
	client API,
	capture Capture,
	speaker speech.Speaker,
	kv store.KV,
	observer Observer,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	if capture == nil {
		capture = speech.NewCapture(nil)
	}
	if speaker == nil {
		speaker = speech.Silent{}
	}
	if kv == nil {
		kv = store.NewMemory(nil)
	}
	if observer == nil {
		observer = NopObserver{}
	}

	c := &Controller{
		logger:    logger,
		api:       client,
		capture:   capture,
		speaker:   speaker,
		kv:        kv,
		observer:  observer,
		state:     fsm.StateUninitialized,
		completed: make(chan struct{}),
	}
	capture.SetOnResult(c.onResult)
	capture.SetOnError(c.onError)
	return c
}

// State returns the current FSM state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a consistent copy of controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Completed is closed once when the interview reaches its terminal state.
func (c *Controller) Completed() <-chan struct{} {
	return c.completed
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		Cursor:    c.cursor,
		Final:     c.final,
		Interim:   c.interim,
		Listening: c.capture.Active(),
		Err:       c.lastErr,
		Kind:      failure.KindOf(c.lastErr),
	}
}

func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.logger.Debug("session transition", "from", string(c.state), "event", string(event), "to", string(next))
	c.state = next
	return nil
}

// Begin reads the session id from the store and loads the first question.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != fsm.StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", state)
	}
	c.mu.Unlock()

	id, ok, err := c.kv.Get(ctx, store.KeySessionID)
	if err != nil {
		return fmt.Errorf("read session id: %w", err)
	}
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return ErrSessionRequired
	}

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "session begin", "session_id", id)

	return c.load(ctx)
}

func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if fsm.Busy(c.state) {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.transitionLocked(fsm.EventLoad); err != nil {
		c.mu.Unlock()
		return err
	}
	id := c.sessionID
	c.mu.Unlock()

	q, err := c.api.CurrentQuestion(ctx, id)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("discarding question response after close", "session_id", id)
		return ErrClosed
	}
	if err != nil {
		return c.failLocked(ctx, actionLoad, err)
	}
	if q.Completed {
		return c.completeLocked(ctx)
	}
	return c.advanceLocked(ctx, Cursor{Question: q.Text, Progress: q.Progress, Total: q.Total})
}

// StartListening activates speech capture for the current question. A
// submit that failed may be recovered by listening again.
func (c *Controller) StartListening(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch {
	case c.state == fsm.StateAwaitingAnswer:
	case c.state == fsm.StateErrored && c.failed == actionSubmit:
		if err := c.transitionLocked(fsm.EventResume); err != nil {
			c.mu.Unlock()
			return err
		}
		c.lastErr = nil
		c.failed = actionNone
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot listen from state %s", state)
	}
	if !c.capture.Active() {
		c.final = ""
		c.interim = ""
	}
	c.accept = true
	c.mu.Unlock()

	if err := c.capture.Start(ctx); err != nil {
		c.mu.Lock()
		c.accept = false
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "speech capture unavailable", "error", err.Error())
		c.observer.Failed(ctx, snap, err)
		return err
	}

	c.observer.ListeningChanged(ctx, c.Snapshot())
	return nil
}

// StopListening ends speech capture. It is a no-op when not listening.
func (c *Controller) StopListening(ctx context.Context) error {
	wasActive := c.capture.Active()
	if err := c.capture.Stop(); err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	if wasActive {
		c.observer.ListeningChanged(ctx, c.Snapshot())
	}
	return nil
}

// ToggleListening starts capture when idle and stops it when active.
func (c *Controller) ToggleListening(ctx context.Context) error {
	if c.capture.Active() {
		return c.StopListening(ctx)
	}
	return c.StartListening(ctx)
}

// Submit sends the finalized answer. Interim text is never submitted.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if fsm.Busy(c.state) {
		c.mu.Unlock()
		return ErrBusy
	}
	if !fsm.Interactive(c.state) || c.cursor.Question == "" {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot submit from state %s", state)
	}
	answer := strings.TrimSpace(c.final)
	if answer == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}
	if err := c.transitionLocked(fsm.EventSubmit); err != nil {
		c.mu.Unlock()
		return err
	}
	c.accept = false
	c.lastErr = nil
	id := c.sessionID
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.capture.Stop(); err != nil {
		c.logger.WarnContext(ctx, "stop capture before submit failed", "error", err.Error())
	}
	c.observer.Submitting(ctx, snap)

	res, err := c.api.SubmitAnswer(ctx, id, answer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("discarding submit response after close", "session_id", id)
		return ErrClosed
	}
	if err != nil {
		return c.failLocked(ctx, actionSubmit, err)
	}
	if res.Completed {
		return c.completeLocked(ctx)
	}
	c.final = ""
	c.interim = ""
	return c.advanceLocked(ctx, Cursor{Question: res.NextQuestion, Progress: res.Progress, Total: res.Total})
}

// Retry re-runs the action that moved the controller to errored.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	state, failed := c.state, c.failed
	c.mu.Unlock()

	if state != fsm.StateErrored {
		return ErrNothingToRetry
	}
	switch failed {
	case actionLoad:
		return c.load(ctx)
	case actionSubmit:
		return c.Submit(ctx)
	default:
		return ErrNothingToRetry
	}
}

// Close stops capture and makes later responses inert.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.accept = false
	c.mu.Unlock()

	return c.capture.Stop()
}

// advanceLocked stores cursor, moves to awaiting_answer and plays the
// question. It releases c.mu.
func (c *Controller) advanceLocked(ctx context.Context, cursor Cursor) error {
	if strings.TrimSpace(cursor.Question) == "" {
		return c.failLocked(ctx, c.pendingAction(), fmt.Errorf("%w: response has no question", failure.ErrServer))
	}
	if err := c.transitionLocked(fsm.EventQuestionReady); err != nil {
		c.mu.Unlock()
		return err
	}
	c.cursor = cursor
	c.lastErr = nil
	c.failed = actionNone
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persistCursor(ctx, cursor)
	c.logger.InfoContext(ctx, "question loaded",
		"session_id", snap.SessionID,
		"progress", cursor.Progress,
		"total", cursor.Total,
	)
	c.speaker.Speak(cursor.Question)
	c.observer.QuestionLoaded(ctx, snap)
	return nil
}

// completeLocked moves to the terminal state. It releases c.mu.
func (c *Controller) completeLocked(ctx context.Context) error {
	if err := c.transitionLocked(fsm.EventComplete); err != nil {
		c.mu.Unlock()
		return err
	}
	c.cursor = Cursor{}
	c.final = ""
	c.interim = ""
	c.accept = false
	c.lastErr = nil
	c.failed = actionNone
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.capture.Stop(); err != nil {
		c.logger.WarnContext(ctx, "stop capture on completion failed", "error", err.Error())
	}
	c.clearCursor(ctx)
	c.logger.InfoContext(ctx, "session completed", "session_id", snap.SessionID)

	c.completeOnce.Do(func() {
		close(c.completed)
		c.observer.Completed(ctx, snap)
	})
	return nil
}

// failLocked moves to errored, keeping the cursor. It releases c.mu.
func (c *Controller) failLocked(ctx context.Context, act action, err error) error {
	if tErr := c.transitionLocked(fsm.EventFail); tErr != nil {
		c.mu.Unlock()
		return errors.Join(err, tErr)
	}
	c.lastErr = err
	c.failed = act
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.ErrorContext(ctx, "session request failed",
		"session_id", snap.SessionID,
		"kind", string(snap.Kind),
		"error", err.Error(),
	)
	c.observer.Failed(ctx, snap, err)
	return err
}

func (c *Controller) pendingAction() action {
	if c.state == fsm.StateSubmitting {
		return actionSubmit
	}
	return actionLoad
}

func (c *Controller) onResult(final string, interim string) {
	c.mu.Lock()
	if c.closed || !c.accept {
		c.mu.Unlock()
		return
	}
	c.final = final
	c.interim = interim
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.observer.TranscriptUpdated(context.Background(), snap)
}

func (c *Controller) onError(kind string) {
	err := &failure.EngineError{Reason: kind}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	snap.Err = err
	snap.Kind = failure.KindEngine
	c.logger.Warn("speech engine error", "session_id", snap.SessionID, "reason", kind)
	c.observer.Failed(context.Background(), snap, err)
}

func (c *Controller) persistCursor(ctx context.Context, cursor Cursor) {
	values := [][2]string{
		{store.KeyCurrentQuestion, cursor.Question},
		{store.KeyProgress, strconv.Itoa(cursor.Progress)},
		{store.KeyTotal, strconv.Itoa(cursor.Total)},
	}
	for _, kv := range values {
		if err := c.kv.Set(ctx, kv[0], kv[1]); err != nil {
			c.logger.WarnContext(ctx, "persist cursor failed", "key", kv[0], "error", err.Error())
		}
	}
}

func (c *Controller) clearCursor(ctx context.Context) {
	for _, key := range []string{store.KeyCurrentQuestion, store.KeyProgress, store.KeyTotal} {
		if err := c.kv.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "clear cursor failed", "key", key, "error", err.Error())
		}
	}
}
