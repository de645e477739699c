package analysis

import (
	"testing"

	"github.com/RyanBlaney/sonido-mix/stems"
)

func TestGenerateWaveformBands(t *testing.T) {
	const sr = 22050
	cfg := defaults().Waveform
	cfg.Points = 200
	set := stems.NewStemSet(map[stems.Name]*stems.Stem{
		stems.Bass:  synth(sr, 10, span{0, 5, 0.5, 100}),
		stems.Other: synth(sr, 10, span{5, 10, 0.5, 5000}),
	})

	w := NewWaveformGenerator(cfg).Generate(set)
	if w.Reason != "" {
		t.Fatalf("unexpected reason: %s", w.Reason)
	}
	n := len(w.Times)
	if n < 150 || n > cfg.Points {
		t.Fatalf("got %d points, want about %d", n, cfg.Points)
	}
	if len(w.Bass) != n || len(w.Mid) != n || len(w.Treble) != n {
		t.Fatalf("band lengths differ: %d %d %d %d", n, len(w.Bass), len(w.Mid), len(w.Treble))
	}

	peak := 0.0
	for i := range w.Times {
		if i > 0 && w.Times[i] <= w.Times[i-1] {
			t.Fatalf("times not increasing at %d", i)
		}
		for _, v := range []float64{w.Bass[i], w.Mid[i], w.Treble[i]} {
			if v < 0 || v > 1 {
				t.Fatalf("value %v at %d outside [0,1]", v, i)
			}
			peak = max(peak, v)
		}

		switch ts := w.Times[i]; {
		case ts < 4:
			if w.Bass[i] <= w.Mid[i] || w.Bass[i] <= w.Treble[i] {
				t.Errorf("at %.2fs bass %v does not lead mid %v / treble %v", ts, w.Bass[i], w.Mid[i], w.Treble[i])
			}
		case ts > 6:
			if w.Treble[i] <= w.Bass[i] {
				t.Errorf("at %.2fs treble %v does not lead bass %v", ts, w.Treble[i], w.Bass[i])
			}
		}
	}
	if peak != 1 {
		t.Errorf("largest value = %v, want 1", peak)
	}
}

func TestGenerateWaveformUnusable(t *testing.T) {
	short := defaults().Waveform
	short.FFTSize = 32768

	tests := []struct {
		name string
		gen  *WaveformGenerator
		set  *stems.StemSet
	}{
		{"nil set", NewWaveformGenerator(defaults().Waveform), nil},
		{"no stems", NewWaveformGenerator(defaults().Waveform), stems.NewStemSet(nil)},
		{"shorter than a frame", NewWaveformGenerator(short), stems.NewStemSet(map[stems.Name]*stems.Stem{
			stems.Drums: synth(22050, 1, span{0, 1, 0.5, 440}),
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.gen.Generate(tt.set)
			if w.Reason == "" {
				t.Error("missing reason")
			}
			if w.Times == nil || len(w.Times) != 0 || len(w.Bass) != 0 {
				t.Errorf("waveform = %+v, want empty", w)
			}
		})
	}
}
