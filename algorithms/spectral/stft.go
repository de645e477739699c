package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/mjibson/go-dsp/window"
)

// STFT computes Hann-windowed short-time magnitude spectra.
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // Samples per frame before padding
	FFTSize        int         `json:"fft_size"`        // Padded transform length
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // Seconds per frame
}

// FrameTime returns the start time of frame i in seconds.
func (r *STFTResult) FrameTime(i int) float64 {
	return float64(i) * r.TimeResolution
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute frames the signal and transforms each frame on a worker pool.
// Frames are written by index so the output is deterministic.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for window size %d", windowSize)
	}

	fftSize := common.NextPowerOfTwo(windowSize)
	freqBins := fftSize/2 + 1
	magnitude := make([][]float64, numFrames)
	hann := window.Hann(windowSize)

	jobs := make(chan int, numFrames)
	var wg sync.WaitGroup

	for range s.workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := make([]float64, windowSize)
			for idx := range jobs {
				start := idx * hopSize
				for i := range windowSize {
					frame[i] = signal[start+i] * hann[i]
				}
				mags, _ := s.fft.MagnitudeSpectrum(frame)
				magnitude[idx] = mags
			}
		}()
	}

	for idx := range numFrames {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		FFTSize:        fftSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(fftSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

func (s *STFT) workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()
	switch {
	case numFrames < 100:
		return max(1, min(numCPU/2, numFrames))
	case numFrames < 1000:
		return max(1, min(numCPU, 8))
	default:
		return max(1, numCPU)
	}
}
