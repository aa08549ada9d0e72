package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Timeouts used by the CLI when talking to a running interview.
const (
	ForwardTimeout = 2 * time.Second
	PingTimeout    = 220 * time.Millisecond
)

// Send performs one request/response round trip. A response with OK=false
// is returned as-is; err covers only socket and codec failures.
func Send(ctx context.Context, path string, cmd Command, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := json.NewEncoder(conn).Encode(Request{Command: cmd}); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Ping reports whether an interview is answering on path. A socket that
// accepts but never answers is an error, not a dead owner.
func Ping(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, CommandStatus, timeout)
	if err == nil {
		return true, nil
	}
	if noOwner(err) {
		return false, nil
	}
	return false, fmt.Errorf("ping socket: %w", err)
}

// Forward sends cmd to the running interview. running is false when nobody
// owns the socket; otherwise err is the command's failure, if any, with its
// failure kind preserved.
func Forward(ctx context.Context, path string, cmd Command) (resp Response, running bool, err error) {
	resp, err = Send(ctx, path, cmd, ForwardTimeout)
	if err == nil {
		return resp, true, resp.Err()
	}

	alive, pingErr := Ping(ctx, path, PingTimeout)
	if !alive && pingErr == nil {
		return Response{}, false, nil
	}
	return Response{}, true, fmt.Errorf("forward %s: %w", cmd, err)
}

// noOwner reports dial failures that mean no interview is listening.
func noOwner(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
