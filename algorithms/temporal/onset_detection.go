package temporal

import (
	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/algorithms/spectral"
)

// OnsetDetection detects note/event onsets from spectral flux.
type OnsetDetection struct {
	spectralFlux *spectral.SpectralFlux
	stft         *spectral.STFT

	// Sensitivity is k in the adaptive threshold mean + k*std.
	Sensitivity float64
	// MinInterval is the shortest gap between two onsets in seconds.
	MinInterval float64
}

// NewOnsetDetection creates a new onset detector
func NewOnsetDetection() *OnsetDetection {
	return &OnsetDetection{
		spectralFlux: spectral.NewSpectralFlux(),
		stft:         spectral.NewSTFT(),
		Sensitivity:  0.5,
		MinInterval:  0.05,
	}
}

// frameSizes picks a ~23 ms hop and a window twice that, both powers of two.
func frameSizes(sampleRate int) (windowSize, hopSize int) {
	hopSize = common.NextPowerOfTwo(int(0.0116 * float64(sampleRate)))
	return hopSize * 2, hopSize
}

// OnsetEnvelope returns the spectral flux series and its frame rate in
// frames per second.
func (od *OnsetDetection) OnsetEnvelope(signal []float64, sampleRate int) ([]float64, float64, error) {
	windowSize, hopSize := frameSizes(sampleRate)
	stftResult, err := od.stft.Compute(signal, windowSize, hopSize, sampleRate)
	if err != nil {
		return nil, 0, err
	}
	return od.spectralFlux.Compute(stftResult.Magnitude), 1.0 / stftResult.TimeResolution, nil
}

// OnsetTimes detects onsets and returns their times in seconds, ascending.
// Signals too short to frame yield no onsets.
func (od *OnsetDetection) OnsetTimes(signal []float64, sampleRate int) []float64 {
	if len(signal) == 0 || sampleRate <= 0 {
		return []float64{}
	}
	flux, frameRate, err := od.OnsetEnvelope(signal, sampleRate)
	if err != nil || len(flux) == 0 {
		return []float64{}
	}

	threshold := od.AdaptiveThreshold(flux)
	frames := od.findFluxPeaks(flux, threshold, od.MinInterval, frameRate)

	times := make([]float64, len(frames))
	for i, f := range frames {
		times[i] = float64(f) / frameRate
	}
	return times
}

// findFluxPeaks returns local maxima above threshold at least minInterval apart
func (od *OnsetDetection) findFluxPeaks(flux []float64, threshold, minInterval, frameRate float64) []int {
	if len(flux) < 3 {
		return []int{}
	}

	minIntervalFrames := int(minInterval * frameRate)
	peaks := []int{}
	lastPeakFrame := -minIntervalFrames - 1

	for i := 1; i < len(flux)-1; i++ {
		if flux[i] > flux[i-1] &&
			flux[i] >= flux[i+1] &&
			flux[i] > threshold &&
			i-lastPeakFrame > minIntervalFrames {
			peaks = append(peaks, i)
			lastPeakFrame = i
		}
	}
	return peaks
}

// AdaptiveThreshold calculates mean + Sensitivity * std of the flux.
func (od *OnsetDetection) AdaptiveThreshold(flux []float64) float64 {
	if len(flux) == 0 {
		return 0.0
	}
	return common.Mean(flux) + od.Sensitivity*common.StandardDeviation(flux)
}
