// Package hypr drives Hyprland through hyprctl: on-screen notifications and
// the keybinding submap that is active during an interview.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultColor is used when Notify receives an empty color.
const DefaultColor = "rgb(89b4fa)"

// Icons accepted by hyprctl notify.
const (
	IconWarning = 0
	IconInfo    = 1
	IconHint    = 2
	IconError   = 3
	IconConfuse = 4
	IconOK      = 5
)

// Submaps switches keybinding submaps.
type Submaps interface {
	SetSubmap(ctx context.Context, name string) error
	ResetSubmap(ctx context.Context) error
}

// CLI implements Submaps with hyprctl.
type CLI struct{}

var _ Submaps = CLI{}

func (CLI) SetSubmap(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("submap name must not be empty")
	}
	return run(ctx, "--quiet", "dispatch", "submap", name)
}

func (c CLI) ResetSubmap(ctx context.Context) error {
	return c.SetSubmap(ctx, "reset")
}

// Notify shows a Hyprland notification for timeoutMS milliseconds.
func Notify(ctx context.Context, icon, timeoutMS int, color, text string) error {
	if strings.TrimSpace(color) == "" {
		color = DefaultColor
	}
	return run(ctx, "--quiet", "dispatch", "notify",
		strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, text)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return run(ctx, "--quiet", "dispatch", "dismissnotify")
}

// Version returns the running Hyprland tag, which doubles as a liveness check.
func Version(ctx context.Context) (string, error) {
	out, err := output(ctx, "-j", "version")
	if err != nil {
		return "", err
	}
	var v struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return "", fmt.Errorf("decode hyprctl version json: %w", err)
	}
	if v.Tag = strings.TrimSpace(v.Tag); v.Tag == "" {
		return "", errors.New("hyprctl version returned empty tag")
	}
	return v.Tag, nil
}

func run(ctx context.Context, args ...string) error {
	_, err := output(ctx, args...)
	return err
}

func output(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
	}
	return out, nil
}
