package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const socketName = "rehearse.sock"

// ErrAlreadyRunning means another interview owns the socket.
var ErrAlreadyRunning = errors.New("an interview is already running")

// RuntimeSocketPath is the socket the interview owner listens on.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// AcquireOptions tunes stale-socket recovery. Zero values use defaults.
type AcquireOptions struct {
	PingTimeout time.Duration
	Retries     int
}

func (o AcquireOptions) withDefaults() AcquireOptions {
	if o.PingTimeout <= 0 {
		o.PingTimeout = 180 * time.Millisecond
	}
	if o.Retries <= 0 {
		o.Retries = 8
	}
	return o
}

// Owner is the listening end held by the running interview. Close removes
// the socket file.
type Owner struct {
	net.Listener
	path string
}

// Path returns the socket path.
func (o *Owner) Path() string { return o.path }

func (o *Owner) Close() error {
	err := o.Listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rmErr := os.Remove(o.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	return err
}

// Acquire claims path for this interview. A socket left by a crashed
// interview is removed; a live one yields ErrAlreadyRunning. A socket that
// accepts but does not answer is left alone.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (*Owner, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Owner{Listener: listener, path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}
		if attempt >= opts.Retries {
			return nil, fmt.Errorf("acquire socket %s: gave up after %d attempts: %w", path, attempt+1, err)
		}

		alive, pingErr := Ping(ctx, path, opts.PingTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if pingErr != nil {
			return nil, fmt.Errorf("ping existing socket %s: %w", path, pingErr)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
}
