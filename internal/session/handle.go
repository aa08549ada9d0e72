package session

import (
	"context"
	"fmt"

	"github.com/rbright/rehearse/internal/ipc"
)

// Handle serves IPC commands for a running interview.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		err error
		msg string
	)
	switch req.Command {
	case ipc.CommandStatus:
		msg = "status"
	case ipc.CommandListen:
		err, msg = c.StartListening(ctx), "listening"
	case ipc.CommandStop:
		err, msg = c.StopListening(ctx), "stopped listening"
	case ipc.CommandToggle:
		err, msg = c.ToggleListening(ctx), "toggled listening"
	case ipc.CommandSubmit:
		err, msg = c.Submit(ctx), "answer submitted"
	case ipc.CommandRetry:
		err, msg = c.Retry(ctx), "retried"
	default:
		err = fmt.Errorf("%w %q", ipc.ErrUnknownCommand, req.Command)
	}

	resp := responseFor(c.Snapshot())
	if err != nil {
		failed := ipc.Failed(err)
		resp.OK, resp.Error = false, failed.Error
		if failed.Kind != "" {
			resp.Kind = failed.Kind
		}
		return resp
	}
	resp.OK = true
	resp.Message = msg
	return resp
}

func responseFor(s Snapshot) ipc.Response {
	return ipc.Response{
		State:    string(s.State),
		Question: s.Cursor.Question,
		Progress: s.Cursor.Progress,
		Total:    s.Cursor.Total,
		Answer:   s.Final,
		Kind:     string(s.Kind),
	}
}
