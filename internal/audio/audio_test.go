package audio

import (
	"context"
	"io"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestChooseDefaultSource(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	sel, err := choose(devices, "default", "default")
	require.NoError(t, err)
	require.Equal(t, "elgato", sel.Device.ID)
	require.Empty(t, sel.Warning)
	require.False(t, sel.Fallback)
}

func TestChooseNamedInput(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	sel, err := choose(devices, "  WH-1000 ", "")
	require.NoError(t, err)
	require.Equal(t, "sony", sel.Device.ID)
}

func TestChooseMutedInputUsesFallback(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Muted: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	sel, err := choose(devices, "elgato", "sony")
	require.NoError(t, err)
	require.Equal(t, "sony", sel.Device.ID)
	require.Contains(t, sel.Warning, "muted")
	require.True(t, sel.Fallback)
}

func TestChooseUnavailableInputFallsBackToDefault(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6"},
	}

	sel, err := choose(devices, "sony", "")
	require.NoError(t, err)
	require.Equal(t, "elgato", sel.Device.ID)
	require.Contains(t, sel.Warning, "unavailable")
}

func TestChooseFailsWhenEverythingMuted(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Muted: true, Default: true},
	}

	_, err := choose(devices, "default", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")
}

func TestChooseUnknownInput(t *testing.T) {
	devices := []Device{{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true}}

	_, err := choose(devices, "missing", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestChooseNoDevices(t *testing.T) {
	_, err := choose(nil, "", "")
	require.ErrorContains(t, err, "no audio input devices")
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestPlayPCMEmptyIsNoop(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	require.NoError(t, PlayPCM(context.Background(), nil, 24000, "test"))
}

func TestPlaySamplesHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, PlaySamples(ctx, []int16{1, 2, 3}, 16000, "test"), context.Canceled)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	yes := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, yes, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(yes))

	no := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, no, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(no))
}

func TestRecordingFramesAndStopFlushesTail(t *testing.T) {
	rec := newRecording(Device{ID: "mic-1"})
	rec.keep = true

	input := make([]byte, frameBytes+111)
	for i := range input {
		input[i] = byte(i % 251)
	}

	n, err := rec.write(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), rec.Bytes())
	require.Equal(t, input, rec.PCM())

	first := <-rec.Frames()
	require.Equal(t, input[:frameBytes], first)

	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())

	tail, ok := <-rec.Frames()
	require.True(t, ok)
	require.Equal(t, input[frameBytes:], tail)

	_, ok = <-rec.Frames()
	require.False(t, ok)
}

func TestRecordingDropsPCMUnlessKept(t *testing.T) {
	rec := newRecording(Device{ID: "mic-1"})
	_, err := rec.write(make([]byte, 10))
	require.NoError(t, err)
	require.Empty(t, rec.PCM())
	require.Equal(t, "mic-1", rec.Device().ID)
}

func TestRecordingWriteAfterStopReturnsEOF(t *testing.T) {
	rec := newRecording(Device{})
	require.NoError(t, rec.Stop())

	n, err := rec.write([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, rec.Bytes())
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
