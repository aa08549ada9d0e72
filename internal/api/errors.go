package api

import (
	"fmt"
	"net/http"

	"github.com/rbright/rehearse/internal/failure"
)

// Error is a non-2xx response from the service.
type Error struct {
	Op      string
	Status  int
	Message string
	kind    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Op, msg, e.Status)
}

// Unwrap exposes the taxonomy sentinel for errors.Is.
func (e *Error) Unwrap() error {
	return e.kind
}

// classify maps a response status to a taxonomy sentinel. sessionScoped
// marks calls whose 403/404 mean the session id is unknown to the caller.
func classify(status int, sessionScoped bool) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusUnprocessableEntity:
		return failure.ErrAuthenticationRequired
	case sessionScoped && (status == http.StatusNotFound || status == http.StatusForbidden):
		return failure.ErrSessionNotFound
	case status == http.StatusConflict:
		return failure.ErrSessionAlreadyFinalized
	case status >= 500:
		return failure.ErrServer
	case status >= 400:
		return failure.ErrValidation
	default:
		return nil
	}
}
