package indicator

import (
	"context"
	"math"
	"time"

	"github.com/rbright/rehearse/internal/audio"
)

type cueKind int

const (
	cueReady cueKind = iota + 1
	cueStart
	cueStop
	cueComplete
	cueError
)

const cueSampleRate = 16000

type tone struct {
	hz     float64
	length time.Duration
	volume float64
}

var cueTable = map[cueKind][]int16{
	cueReady:    synthesize(tone{660, 60 * time.Millisecond, 0.14}),
	cueStart:    synthesize(tone{880, 70 * time.Millisecond, 0.18}, tone{1175, 70 * time.Millisecond, 0.18}),
	cueStop:     synthesize(tone{620, 120 * time.Millisecond, 0.18}),
	cueComplete: synthesize(tone{740, 65 * time.Millisecond, 0.18}, tone{988, 90 * time.Millisecond, 0.18}, tone{1319, 110 * time.Millisecond, 0.16}),
	cueError:    synthesize(tone{480, 75 * time.Millisecond, 0.18}, tone{360, 90 * time.Millisecond, 0.18}),
}

func cueSamples(kind cueKind) []int16 {
	return cueTable[kind]
}

func playCue(ctx context.Context, samples []int16) error {
	return audio.PlaySamples(ctx, samples, cueSampleRate, "rehearse cue")
}

// synthesize concatenates tones separated by short silences.
func synthesize(tones ...tone) []int16 {
	gap := make([]int16, samplesFor(22*time.Millisecond))
	var pcm []int16
	for n, t := range tones {
		if n > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, t.samples()...)
	}
	return pcm
}

// samples renders a sine with a short linear attack and release.
func (t tone) samples() []int16 {
	n := samplesFor(t.length)
	if n <= 0 || t.hz <= 0 || t.volume <= 0 {
		return nil
	}

	ramp := min(max(n/10, 1), cueSampleRate/200)
	out := make([]int16, n)
	for i := range out {
		env := math.Min(1, math.Min(float64(i)/float64(ramp), float64(n-1-i)/float64(ramp)))
		s := math.Sin(2 * math.Pi * t.hz * float64(i) / cueSampleRate)
		out[i] = int16(math.Round(s * t.volume * env * math.MaxInt16))
	}
	return out
}

func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
