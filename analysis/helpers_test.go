package analysis

import (
	"math"

	"github.com/RyanBlaney/sonido-mix/stems"
)

// span is a stretch of sine tone inside a synthetic stem.
type span struct {
	start, end float64
	amp, freq  float64
}

func synth(sampleRate int, seconds float64, spans ...span) *stems.Stem {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for _, s := range spans {
		lo := int(s.start * float64(sampleRate))
		hi := min(n, int(s.end*float64(sampleRate)))
		for i := lo; i < hi; i++ {
			t := float64(i) / float64(sampleRate)
			out[i] += s.amp * math.Sin(2*math.Pi*s.freq*t)
		}
	}
	return &stems.Stem{Samples: out, SampleRate: sampleRate}
}

// clicks places a short decaying 1 kHz burst on every beat.
func clicks(bpm float64, sampleRate int, seconds, offset float64) *stems.Stem {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	interval := 60.0 / bpm
	for t := offset; t < seconds; t += interval {
		start := int(t * float64(sampleRate))
		for i := 0; i < 200 && start+i < n; i++ {
			tt := float64(i) / float64(sampleRate)
			out[start+i] += 0.8 * math.Sin(2*math.Pi*1000*tt) * math.Exp(-tt/0.005)
		}
	}
	return &stems.Stem{Samples: out, SampleRate: sampleRate}
}

// stabs plays a short chord on every beat.
func stabs(bpm float64, sampleRate int, seconds float64, freqs ...float64) *stems.Stem {
	var spans []span
	interval := 60.0 / bpm
	for t := 0.0; t < seconds; t += interval {
		for _, f := range freqs {
			spans = append(spans, span{t, min(seconds, t+0.15), 0.1, f})
		}
	}
	return synth(sampleRate, seconds, spans...)
}

// steadyGrid builds a grid at bpm covering duration with the default
// 4/32/128 grouping.
func steadyGrid(bpm, duration float64) []BeatGridEntry {
	interval := 60.0 / bpm
	var grid []BeatGridEntry
	for i := 0; float64(i)*interval < duration; i++ {
		grid = append(grid, BeatGridEntry{
			Index:          i,
			Time:           float64(i) * interval,
			Bar:            i/4 + 1,
			BeatInBar:      i%4 + 1,
			IsDownbeat:     i%4 == 0,
			IsPhraseStart:  i%32 == 0,
			IsSectionStart: i%128 == 0,
			Confidence:     1,
		})
	}
	return grid
}

func checkCoverage(sections []StructuralSection, duration float64) (string, bool) {
	if len(sections) == 0 {
		return "no sections", false
	}
	if sections[0].Start != 0 {
		return "first section does not start at 0", false
	}
	for i := 1; i < len(sections); i++ {
		if sections[i].Start != sections[i-1].End {
			return "gap or overlap between sections", false
		}
		if sections[i].End <= sections[i].Start {
			return "empty section", false
		}
	}
	if sections[len(sections)-1].End != duration {
		return "last section does not end at duration", false
	}
	return "", true
}
