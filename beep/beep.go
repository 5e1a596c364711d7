// Package beep plays the short cue tones for session start, end and error.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

// Disable silences every Player in the process.
func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60
	startDur    = 0.12

	// end: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40
	endDur    = 0.15

	// error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
	errorDur    = 0.08
	errorGap    = 0.05
)

type tones struct {
	start, end, error []int16
}

var (
	cues     tones
	cuesOnce sync.Once
)

func loadCues() *tones {
	cuesOnce.Do(func() {
		cues = tones{
			start: tick(sampleRate, startFreq, startDur, startVolume, startDecay),
			end:   tick(sampleRate, endFreq, endDur, endVolume, endDecay),
			error: doubleBeep(sampleRate, errorFreq, errorDur, errorGap, errorVolume, errorDecay),
		}
	})
	return &cues
}

// tick renders a mono sine with an exponential decay envelope.
func tick(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(rate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(rate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(rate)*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	out = append(out, b...)
	return out
}

// Player plays cues on the default output device. Playback is
// asynchronous; a cue that cannot be played is dropped.
type Player struct{}

func NewPlayer() *Player {
	initOutput()
	return &Player{}
}

func (p *Player) PlayStart() { p.play(loadCues().start) }
func (p *Player) PlayEnd()   { p.play(loadCues().end) }
func (p *Player) PlayError() { p.play(loadCues().error) }

func (p *Player) play(samples []int16) {
	if disabled.Load() || len(samples) == 0 {
		return
	}
	playSamples(samples)
}
