// Package failure defines the error taxonomy shared by the interview client.
package failure

import (
	"errors"
	"fmt"
)

// Kind names a class of failure surfaced to the user.
type Kind string

const (
	KindNone                    Kind = ""
	KindUnsupportedCapability   Kind = "unsupported_capability"
	KindValidation              Kind = "validation"
	KindSessionNotFound         Kind = "session_not_found"
	KindSessionAlreadyFinalized Kind = "session_already_finalized"
	KindAuthenticationRequired  Kind = "authentication_required"
	KindTransport               Kind = "transport"
	KindServer                  Kind = "server"
	KindEngine                  Kind = "engine"
	KindUnknown                 Kind = "unknown"
)

var (
	ErrUnsupportedCapability   = errors.New("speech capability unavailable")
	ErrValidation              = errors.New("validation failed")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionAlreadyFinalized = errors.New("session already finalized")
	ErrAuthenticationRequired  = errors.New("authentication required")
	ErrTransport               = errors.New("transport failure")
	ErrServer                  = errors.New("server failure")
	ErrEngine                  = errors.New("speech engine failure")
)

// EngineError carries the opaque reason reported by a speech engine and,
// when known, the underlying cause.
type EngineError struct {
	Reason string
	Err    error
}

func (e *EngineError) Error() string {
	msg := ErrEngine.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

// Is reports EngineError values as ErrEngine.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

// Validation wraps a user-facing message as a validation failure.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnsupportedCapability, KindUnsupportedCapability},
	{ErrValidation, KindValidation},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrSessionAlreadyFinalized, KindSessionAlreadyFinalized},
	{ErrAuthenticationRequired, KindAuthenticationRequired},
	{ErrTransport, KindTransport},
	{ErrServer, KindServer},
	{ErrEngine, KindEngine},
}

// Sentinel returns the taxonomy error for kind, or nil for kinds without one.
func Sentinel(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// KindOf classifies err by the first taxonomy sentinel found in its chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Hint returns a short remediation line for kinds the user can act on.
func Hint(kind Kind) string {
	switch kind {
	case KindAuthenticationRequired:
		return "run `rehearse login` and try again"
	case KindSessionNotFound:
		return "start a new interview with `rehearse upload`"
	case KindUnsupportedCapability:
		return "check `rehearse doctor` for speech recognition availability"
	case KindTransport:
		return "check the api.base_url setting and your network connection"
	default:
		return ""
	}
}
