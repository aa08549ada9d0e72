// Package audio wraps PulseAudio for microphone capture and PCM playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const clientName = "rehearse"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the source can deliver audio right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Selection is the resolved capture source. Warning is set when the
// preferred source could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func connect(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns the Pulse input sources with default and availability
// metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, src := range reply {
		if src == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          src.SourceName,
			Description: src.Device,
			State:       sourceStateString(src.State),
			Available:   sourceAvailable(src),
			Muted:       src.Mute,
			Default:     src.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice resolves the configured input and fallback against the live
// source list. An empty term or "default" means the Pulse default source.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

func choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := resolve(devices, input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	if primary.Usable() {
		return Selection{Device: primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alt, err := resolve(devices, fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("input %q is %s and no usable fallback: %w", primary.ID, reason, err)
	}
	switch {
	case !alt.Available:
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", alt.ID)
	case alt.Muted:
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", alt.ID)
	}

	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

// resolve finds the device named by term, or the default source.
func resolve(devices []Device, term, setting string) (Device, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || term == "default" {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}
	for _, dev := range devices {
		if deviceMatches(dev, term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", setting, term)
}

// deviceMatches reports whether term is a substring of the device id or
// description. term must already be lowercase.
func deviceMatches(dev Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(dev.ID), term) ||
		strings.Contains(strings.ToLower(dev.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable checks the active port. Pulse reports unknown=0, no=1, yes=2.
func sourceAvailable(src *pulseproto.GetSourceInfoReply) bool {
	if src == nil {
		return false
	}
	for _, port := range src.Ports {
		if port.Name == src.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
