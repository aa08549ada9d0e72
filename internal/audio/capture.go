package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate expected by the recognizer.
	SampleRate = 16000

	frameBytes = 640 // 20ms of mono s16le
)

// Recording streams fixed-size PCM frames from one Pulse source.
type Recording struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	frames chan []byte
	done   chan struct{}

	mu      sync.Mutex
	pending []byte
	keep    bool
	pcm     []byte
	stopped bool

	inflight sync.WaitGroup
	total    atomic.Int64
}

// RecordOption tunes a Recording.
type RecordOption func(*Recording)

// KeepPCM retains every captured byte so it can be dumped after Stop.
func KeepPCM() RecordOption {
	return func(r *Recording) { r.keep = true }
}

// Record opens a 16kHz mono s16 stream on dev. The recording stops on its
// own when ctx ends.
func Record(ctx context.Context, dev Device, opts ...RecordOption) (*Recording, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}

	src, err := client.SourceByID(dev.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", dev.ID, err)
	}

	r := newRecording(dev)
	r.client = client
	for _, opt := range opts {
		opt(r)
	}

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(r.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(src),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName("rehearse answer"),
	)
	if err != nil {
		_ = r.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	r.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = r.Stop()
		case <-r.done:
		}
	}()
	return r, nil
}

func newRecording(dev Device) *Recording {
	return &Recording{
		device: dev,
		frames: make(chan []byte, 128),
		done:   make(chan struct{}),
	}
}

// Device returns the source being recorded.
func (r *Recording) Device() Device { return r.device }

// Frames yields PCM frames and is closed after Stop.
func (r *Recording) Frames() <-chan []byte { return r.frames }

// Bytes reports how much PCM Pulse has delivered.
func (r *Recording) Bytes() int64 { return r.total.Load() }

// PCM returns a copy of the retained audio. It is empty unless KeepPCM was set.
func (r *Recording) PCM() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.pcm...)
}

// Stop ends the stream, emits any partial frame, and closes Frames. It is
// safe to call more than once.
func (r *Recording) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.done)
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}

	r.inflight.Wait()

	r.mu.Lock()
	tail := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(tail) > 0 {
		select {
		case r.frames <- tail:
		default:
		}
	}
	close(r.frames)
	return nil
}

func (r *Recording) write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return 0, io.EOF
	}
	// Add must happen under the same lock that guards stopped.
	r.inflight.Add(1)
	defer r.inflight.Done()

	if r.keep {
		r.pcm = append(r.pcm, buf...)
	}
	r.pending = append(r.pending, buf...)
	var ready [][]byte
	for len(r.pending) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, r.pending)
		r.pending = r.pending[frameBytes:]
		ready = append(ready, frame)
	}
	r.pending = append([]byte(nil), r.pending...)
	r.mu.Unlock()

	r.total.Add(int64(len(buf)))

	for _, frame := range ready {
		select {
		case <-r.done:
			return 0, io.EOF
		case r.frames <- frame:
		}
	}
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
