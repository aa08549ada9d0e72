// Package events publishes interview session progress to NATS so other
// tools (overlays, recorders, dashboards) can follow along.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/rbright/rehearse/internal/failure"
	"github.com/rbright/rehearse/internal/session"
)

// Event types, used as the final subject token.
const (
	TypeQuestionLoaded    = "question_loaded"
	TypeTranscriptUpdated = "transcript_updated"
	TypeListeningChanged  = "listening_changed"
	TypeSubmitting        = "submitting"
	TypeFailed            = "failed"
	TypeCompleted         = "completed"
)

// Event is the JSON payload published for every controller notification.
type Event struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	SessionID string       `json:"session_id,omitempty"`
	State     string       `json:"state"`
	Question  string       `json:"question,omitempty"`
	Progress  int          `json:"progress,omitempty"`
	Total     int          `json:"total,omitempty"`
	Listening bool         `json:"listening"`
	Final     string       `json:"final,omitempty"`
	Interim   string       `json:"interim,omitempty"`
	Error     string       `json:"error,omitempty"`
	Kind      failure.Kind `json:"kind,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

var _ session.Observer = (*Publisher)(nil)

// Publisher is a session.Observer that emits one NATS message per
// notification. Publish failures are logged and never reach the session.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// Connect dials url and returns a publisher rooted at prefix.
func Connect(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	conn, err := nats.Connect(url,
		nats.Name("rehearse"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %q: %w", url, err)
	}
	logger.Info("nats connected", "url", conn.ConnectedUrl())
	return NewPublisher(conn, prefix, logger), nil
}

// NewPublisher wraps an established connection.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "rehearse.session"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *Publisher) QuestionLoaded(ctx context.Context, s session.Snapshot) {
	p.publish(ctx, TypeQuestionLoaded, s, nil)
}

func (p *Publisher) TranscriptUpdated(ctx context.Context, s session.Snapshot) {
	p.publish(ctx, TypeTranscriptUpdated, s, nil)
}

func (p *Publisher) ListeningChanged(ctx context.Context, s session.Snapshot) {
	p.publish(ctx, TypeListeningChanged, s, nil)
}

func (p *Publisher) Submitting(ctx context.Context, s session.Snapshot) {
	p.publish(ctx, TypeSubmitting, s, nil)
}

func (p *Publisher) Failed(ctx context.Context, s session.Snapshot, err error) {
	p.publish(ctx, TypeFailed, s, err)
}

func (p *Publisher) Completed(ctx context.Context, s session.Snapshot) {
	p.publish(ctx, TypeCompleted, s, nil)
}

func (p *Publisher) publish(ctx context.Context, eventType string, s session.Snapshot, err error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	ev := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: s.SessionID,
		State:     string(s.State),
		Question:  s.Cursor.Question,
		Progress:  s.Cursor.Progress,
		Total:     s.Cursor.Total,
		Listening: s.Listening,
		Final:     s.Final,
		Interim:   s.Interim,
		Timestamp: p.now().UnixMilli(),
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Kind = failure.KindOf(err)
	}

	data, merr := json.Marshal(ev)
	if merr != nil {
		p.logger.WarnContext(ctx, "marshal session event", "type", eventType, "error", merr)
		return
	}
	subject := p.Subject(eventType)
	if perr := p.conn.Publish(subject, data); perr != nil {
		p.logger.WarnContext(ctx, "publish session event", "subject", subject, "error", perr)
		return
	}
	p.logger.DebugContext(ctx, "published session event", "subject", subject, "event_id", ev.ID)
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	if err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
