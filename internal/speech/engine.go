// Package speech adapts streaming recognition engines and speech synthesis
// backends to the narrow capture and playback contracts used by a session.
package speech

import (
	"context"
	"errors"

	"github.com/rbright/rehearse/internal/failure"
)

// Engine error kinds reported through Handlers.OnError.
const (
	ErrorNotAllowed   = "not-allowed"
	ErrorNoSpeech     = "no-speech"
	ErrorNetwork      = "network"
	ErrorAudioCapture = "audio-capture"
	ErrorAborted      = "aborted"
)

// Segment is one recognized span of speech.
type Segment struct {
	Text  string
	Final bool
}

// Event is one incremental recognition update. Final segments are reported
// once; provisional segments describe the engine's current guess.
type Event struct {
	Segments []Segment
}

// Handlers receive engine callbacks. Any field may be nil.
type Handlers struct {
	OnEvent func(Event)
	OnError func(kind string)
	OnEnd   func()
}

// Engine is a continuous, interim-result-emitting recognizer.
type Engine interface {
	// Start begins recognition and returns once the engine is listening.
	Start(ctx context.Context, handlers Handlers) error
	// Stop asks the engine to finish; OnEnd fires once it has.
	Stop() error
}

// ErrorKind maps an engine start/stop error to a reported kind.
func ErrorKind(err error) string {
	var engineErr *failure.EngineError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &engineErr) && engineErr.Reason != "":
		return engineErr.Reason
	case errors.Is(err, context.Canceled):
		return ErrorAborted
	default:
		return ErrorAudioCapture
	}
}
