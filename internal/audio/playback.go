package audio

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// PlayPCM plays mono s16le audio at rate and blocks until it drains or ctx
// ends. mediaName labels the stream in the mixer.
func PlayPCM(ctx context.Context, pcm []byte, rate int, mediaName string) error {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return PlaySamples(ctx, samples, rate, mediaName)
}

// PlaySamples is PlayPCM for already decoded samples.
func PlaySamples(ctx context.Context, samples []int16, rate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := connect("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(rate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	drained := make(chan struct{})
	go func() {
		stream.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		// the reader reports end of data once ctx is done
		<-drained
		return ctx.Err()
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play pcm stream: %w", err)
	}
	return nil
}
