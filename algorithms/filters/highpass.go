package filters

import (
	"math"
)

// HighPass is a single-pole RC high-pass filter:
//
//	y[n] = α * (y[n-1] + x[n] - x[n-1])
//
// with α = RC / (RC + dt), RC = 1/(2π·fc), dt = 1/fs.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
type HighPass struct {
	alpha      float64
	cutoffFreq float64
	sampleRate int

	// State variables
	x1 float64 // previous input x[n-1]
	y1 float64 // previous output y[n-1]
}

// NewHighPass creates a filter with an explicit coefficient. α outside
// (0, 1) is clamped.
func NewHighPass(alpha float64) *HighPass {
	return &HighPass{alpha: clampAlpha(alpha)}
}

// NewHighPassWithCutoff creates a filter with the given -3dB cutoff.
func NewHighPassWithCutoff(sampleRate int, cutoffFreq float64) *HighPass {
	hp := &HighPass{sampleRate: sampleRate, cutoffFreq: cutoffFreq}
	hp.alpha = AlphaForCutoff(sampleRate, cutoffFreq)
	return hp
}

// AlphaForCutoff returns the coefficient for a cutoff frequency.
func AlphaForCutoff(sampleRate int, cutoffFreq float64) float64 {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return 0.995
	}
	rc := 1.0 / (2.0 * math.Pi * cutoffFreq)
	dt := 1.0 / float64(sampleRate)
	return clampAlpha(rc / (rc + dt))
}

func clampAlpha(a float64) float64 {
	if math.IsNaN(a) || a <= 0 {
		return 0.001
	}
	if a >= 1 {
		return 0.999
	}
	return a
}

// Process filters one sample.
func (hp *HighPass) Process(input float64) float64 {
	output := hp.alpha * (hp.y1 + input - hp.x1)
	hp.x1 = input
	hp.y1 = output
	return output
}

// ProcessBuffer filters a buffer from a clean state and returns a new slice.
// The input is never modified.
func (hp *HighPass) ProcessBuffer(input []float64) []float64 {
	hp.Reset()
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = hp.Process(sample)
	}
	return output
}

// Reset clears the filter's internal state.
func (hp *HighPass) Reset() {
	hp.x1 = 0.0
	hp.y1 = 0.0
}

// Alpha returns the filter coefficient.
func (hp *HighPass) Alpha() float64 {
	return hp.alpha
}

// CutoffFrequency returns the approximate -3dB cutoff for the configured
// coefficient at sampleRate.
func (hp *HighPass) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	// α = RC/(RC+dt)  =>  RC = α·dt/(1-α)
	dt := 1.0 / float64(sampleRate)
	rc := hp.alpha * dt / (1.0 - hp.alpha)
	return 1.0 / (2.0 * math.Pi * rc)
}
