package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// desktopBackend sends replaceable freedesktop notifications over DBus via
// busctl, keeping one notification id per session.
type desktopBackend struct {
	appName string

	mu sync.Mutex
	id uint32
}

func (d *desktopBackend) notify(ctx context.Context, _ int, timeoutMS int, _ string, text string) error {
	d.mu.Lock()
	replace := d.id
	d.mu.Unlock()

	app := strings.TrimSpace(d.appName)
	if app == "" {
		app = "rehearse-indicator"
	}

	out, err := busctl(ctx, "Notify", "susssasa{sv}i",
		app, strconv.FormatUint(uint64(replace), 10), "", text, "",
		"0", // actions
		"0", // hints
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return fmt.Errorf("desktop notify invalid response: %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}

	d.mu.Lock()
	d.id = uint32(id)
	d.mu.Unlock()
	return nil
}

func (d *desktopBackend) dismiss(ctx context.Context) error {
	d.mu.Lock()
	id := d.id
	d.id = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method,
	}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%w (%s)", err, trimmed)
		}
		return "", err
	}
	return trimmed, nil
}
