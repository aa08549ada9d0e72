// Package ipc lets CLI invocations drive a running interview over a unix socket.
package ipc

import (
	"fmt"
	"strings"

	"github.com/rbright/rehearse/internal/failure"
)

// Command is one operation a running interview accepts.
type Command string

// Commands understood by a running interview.
const (
	CommandStatus Command = "status"
	CommandListen Command = "listen"
	CommandStop   Command = "stop"
	CommandToggle Command = "toggle"
	CommandSubmit Command = "submit"
	CommandRetry  Command = "retry"
)

// ErrUnknownCommand rejects a request outside the command set.
var ErrUnknownCommand = fmt.Errorf("%w: unknown interview command", failure.ErrValidation)

var commands = map[Command]struct{}{
	CommandStatus: {},
	CommandListen: {},
	CommandStop:   {},
	CommandToggle: {},
	CommandSubmit: {},
	CommandRetry:  {},
}

// ParseCommand normalizes s and checks it against the command set.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := commands[cmd]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCommand, s)
	}
	return cmd, nil
}

// Mutates reports whether cmd can change interview state.
func (c Command) Mutates() bool {
	return c != CommandStatus
}

type Request struct {
	Command Command `json:"command"`
}

// Response reports the interview after a command. Kind carries the
// failure kind of the command error, or of the last failed request.
type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Question string `json:"question,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Total    int    `json:"total,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

// Failed builds the response for a rejected command.
func Failed(err error) Response {
	resp := Response{OK: false, Error: err.Error()}
	if kind := failure.KindOf(err); kind != failure.KindUnknown {
		resp.Kind = string(kind)
	}
	return resp
}

// Err returns nil for a successful response, otherwise a RemoteError that
// keeps the failure kind across the socket.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "command failed"
	}
	return &RemoteError{Message: msg, Kind: failure.Kind(r.Kind)}
}

// RemoteError is a command failure reported by the running interview.
type RemoteError struct {
	Message string
	Kind    failure.Kind
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return failure.Sentinel(e.Kind) }
