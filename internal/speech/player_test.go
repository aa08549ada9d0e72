package speech

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSynth struct {
	mu    sync.Mutex
	said  []string
	err   error
	block chan struct{}
}

func (r *recordingSynth) Say(ctx context.Context, text string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, text)
	return r.err
}

func (r *recordingSynth) utterances() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.said...)
}

func TestPlayerSpeaksInCallOrder(t *testing.T) {
	synth := &recordingSynth{}
	p := NewPlayer(synth, nil)

	p.Speak("Tell me about yourself")
	p.Speak("  ")
	p.Speak("Why this role?")
	p.Wait()

	require.Equal(t, []string{"Tell me about yourself", "Why this role?"}, synth.utterances())
}

func TestPlayerSwallowsSynthesisErrors(t *testing.T) {
	synth := &recordingSynth{err: errors.New("no sink")}
	p := NewPlayer(synth, nil)

	p.Speak("hello")
	p.Wait()
	require.Equal(t, []string{"hello"}, synth.utterances())
}

func TestPlayerWithoutSynthIsSilentNoop(t *testing.T) {
	p := NewPlayer(nil, nil)
	p.Speak("hello")
	p.Wait()

	var nilPlayer *Player
	nilPlayer.Speak("hello")
	Silent{}.Speak("hello")
}

func TestPlayerCloseDropsQueue(t *testing.T) {
	synth := &recordingSynth{block: make(chan struct{})}
	p := NewPlayer(synth, nil)

	p.Speak("first")
	p.Speak("second")
	p.Close()
	p.Wait()
	p.Speak("third")
	p.Wait()

	require.Empty(t, synth.utterances())
}
