package chroma

import (
	"math"
	"testing"
)

func chord(freqs []float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		for _, f := range freqs {
			out[i] += 0.2 * math.Sin(2*math.Pi*f*t)
		}
	}
	return out
}

func TestPitchClass(t *testing.T) {
	cs := NewChromaSTFT()
	tests := []struct {
		freq float64
		want int
	}{
		{440, 9},     // A4
		{261.63, 0},  // C4
		{392.0, 7},   // G4
		{27.5, 9},    // A0
		{1046.5, 0},  // C6
		{0, -1},
	}
	for _, tt := range tests {
		if got := cs.PitchClass(tt.freq); got != tt.want {
			t.Errorf("PitchClass(%v) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestComputeChordPeaks(t *testing.T) {
	const sr = 22050
	x := chord([]float64{261.63, 329.63, 392.0}, sr, 3)
	c, ok := NewChromaSTFT().Compute(x, sr)
	if !ok {
		t.Fatal("chroma not computed")
	}
	sum := 0.0
	for _, v := range c {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum)
	}
	for _, pc := range []int{0, 4, 7} {
		for _, other := range []int{1, 3, 6, 8, 10} {
			if c[pc] <= c[other] {
				t.Errorf("chroma[%d]=%v not above chroma[%d]=%v", pc, c[pc], other, c[other])
			}
		}
	}
}

func TestComputeSilence(t *testing.T) {
	if _, ok := NewChromaSTFT().Compute(make([]float64, 22050), 22050); ok {
		t.Errorf("silence reported ok")
	}
	if _, ok := NewChromaSTFT().Compute(nil, 22050); ok {
		t.Errorf("nil reported ok")
	}
}

func TestHarmonicBoostNormalized(t *testing.T) {
	in := make([]float64, 12)
	in[0], in[7] = 0.5, 0.5
	out := HarmonicBoost(in, 0.5, 0.25)
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum)
	}
	if out[0] <= out[7] {
		t.Errorf("root should gain from its fifth: %v", out)
	}
}
