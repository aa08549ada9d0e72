package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"
)

// requestTimeout bounds how long a client may take to send its request.
const requestTimeout = 2 * time.Second

// Handler executes one validated command.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one request per connection until ctx ends or the listener
// closes. Commands outside the command set are rejected before handler
// sees them, and mutating commands run one at a time.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	s := &server{handler: handler, logger: logger}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept interview command: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			s.serveConn(ctx, conn)
		}()
	}
}

type server struct {
	handler Handler
	logger  *slog.Logger
	mutate  sync.Mutex
}

func (s *server) serveConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		s.reply(conn, "", Failed(fmt.Errorf("read request: %w", err)))
		return
	}

	var raw struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		s.reply(conn, "", Failed(fmt.Errorf("decode request: %w", err)))
		return
	}
	cmd, err := ParseCommand(raw.Command)
	if err != nil {
		s.reply(conn, Command(raw.Command), Failed(err))
		return
	}

	if cmd.Mutates() {
		s.mutate.Lock()
		defer s.mutate.Unlock()
	}
	s.reply(conn, cmd, s.handler.Handle(ctx, Request{Command: cmd}))
}

func (s *server) reply(conn net.Conn, cmd Command, resp Response) {
	if !resp.OK {
		s.logger.Warn("interview command failed", "command", string(cmd), "kind", resp.Kind, "error", resp.Error)
	} else if cmd.Mutates() {
		s.logger.Info("interview command", "command", string(cmd), "state", resp.State)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	_ = json.NewEncoder(conn).Encode(resp)
}
