package spectral

import (
	"math/cmplx"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the go-dsp real transform.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the complex spectrum of x at its own length.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputePadded zero-pads x to the next power of two before transforming.
// The input slice is not modified.
func (f *FFT) ComputePadded(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	if common.IsPowerOfTwo(len(x)) {
		return fft.FFTReal(x)
	}
	padded := make([]float64, common.NextPowerOfTwo(len(x)))
	copy(padded, x)
	return fft.FFTReal(padded)
}

// MagnitudeSpectrum returns |X[k]| for k in [0, N/2] of the padded
// transform together with the padded length N.
func (f *FFT) MagnitudeSpectrum(x []float64) ([]float64, int) {
	spectrum := f.ComputePadded(x)
	if len(spectrum) == 0 {
		return []float64{}, 0
	}
	bins := len(spectrum)/2 + 1
	mags := make([]float64, bins)
	for i := range bins {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags, len(spectrum)
}

// BinFrequency converts a bin index into Hz for an N-point transform.
func BinFrequency(bin, n, sampleRate int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(bin) * float64(sampleRate) / float64(n)
}
