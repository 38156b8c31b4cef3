package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SampleRate is the PCM rate shared by the synthesizer, the playback
// context, and the bundled fallback sample.
const SampleRate = 44100

// Cue names the audible alert tiers.
type Cue int

const (
	// CueChime is the standard pre-due alert: a three-note ascending chime.
	CueChime Cue = iota
	// CueUrgent is the due alert: two short sharp beeps.
	CueUrgent
)

func (c Cue) String() string {
	switch c {
	case CueChime:
		return "chime"
	case CueUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// tone is one enveloped sine burst within a cue.
type tone struct {
	freq  float64       // Hz
	start time.Duration // offset into the cue
	dur   time.Duration
	decay float64 // exponential envelope rate, higher is sharper
	gain  float64
}

// chime: C5, E5, G5 staggered into roughly half a second with a soft tail.
var chimeTones = []tone{
	{freq: 523.25, start: 0, dur: 180 * time.Millisecond, decay: 9, gain: 0.40},
	{freq: 659.25, start: 160 * time.Millisecond, dur: 180 * time.Millisecond, decay: 9, gain: 0.40},
	{freq: 783.99, start: 320 * time.Millisecond, dur: 180 * time.Millisecond, decay: 9, gain: 0.40},
}

// urgent: two 800 Hz beeps, ~100 ms each, ~200 ms apart, cut off hard.
var urgentTones = []tone{
	{freq: 800, start: 0, dur: 100 * time.Millisecond, decay: 22, gain: 0.50},
	{freq: 800, start: 300 * time.Millisecond, dur: 100 * time.Millisecond, decay: 22, gain: 0.50},
}

// Render synthesizes a cue as 16-bit little-endian mono PCM at SampleRate.
func Render(cue Cue) []byte {
	switch cue {
	case CueUrgent:
		return synthesize(urgentTones)
	default:
		return synthesize(chimeTones)
	}
}

func synthesize(tones []tone) []byte {
	var total time.Duration
	for _, t := range tones {
		if end := t.start + t.dur; end > total {
			total = end
		}
	}

	n := int(float64(SampleRate) * total.Seconds())
	mix := make([]float64, n)

	for _, t := range tones {
		offset := int(float64(SampleRate) * t.start.Seconds())
		count := int(float64(SampleRate) * t.dur.Seconds())
		for i := 0; i < count && offset+i < n; i++ {
			at := float64(i) / SampleRate
			env := math.Exp(-t.decay * at)
			mix[offset+i] += t.gain * env * math.Sin(2*math.Pi*t.freq*at)
		}
	}

	out := make([]byte, n*2)
	for i, v := range mix {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}
