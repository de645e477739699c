package chroma

import (
	"math"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/algorithms/spectral"
)

// ChromaSTFT folds STFT magnitudes into 12 pitch classes.
//
// Bins are mapped with round(12*log2(f/tuning) + 69) mod 12, so pitch
// class 0 is C. Only frequencies inside [MinFreq, MaxFreq] contribute.
type ChromaSTFT struct {
	stft *spectral.STFT

	TuningFreq float64 // A4 frequency (default 440 Hz)
	MinFreq    float64
	MaxFreq    float64
	// FrameSeconds is the analysis frame length before power-of-two padding.
	FrameSeconds float64
	// MaxFrames caps the number of analysed frames; frames are spread evenly.
	MaxFrames int
}

// NewChromaSTFT creates a chroma calculator with A4=440 Hz tuning and a
// 55 Hz - 4 kHz analysis range.
func NewChromaSTFT() *ChromaSTFT {
	return &ChromaSTFT{
		stft:         spectral.NewSTFT(),
		TuningFreq:   440.0,
		MinFreq:      55.0,
		MaxFreq:      4000.0,
		FrameSeconds: 0.186,
		MaxFrames:    256,
	}
}

// PitchClass maps a frequency to 0..11, or -1 for non-positive input.
func (cs *ChromaSTFT) PitchClass(frequency float64) int {
	if frequency <= 0 {
		return -1
	}
	midi := 12*math.Log2(frequency/cs.TuningFreq) + 69
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}

// Compute returns a sum-normalized 12-bin chroma vector averaged over the
// signal. ok is false when the signal is too short or has no energy in the
// analysis range.
func (cs *ChromaSTFT) Compute(signal []float64, sampleRate int) ([]float64, bool) {
	empty := make([]float64, 12)
	if len(signal) == 0 || sampleRate <= 0 {
		return empty, false
	}

	windowSize := common.NextPowerOfTwo(int(cs.FrameSeconds * float64(sampleRate)))
	if len(signal) < windowSize {
		windowSize = common.NextPowerOfTwo(len(signal)) / 2
		if windowSize < 64 {
			return empty, false
		}
	}
	hop := windowSize
	if cs.MaxFrames > 0 {
		hop = max(windowSize, (len(signal)-windowSize)/cs.MaxFrames)
	}

	stftResult, err := cs.stft.Compute(signal, windowSize, hop, sampleRate)
	if err != nil {
		return empty, false
	}

	mapping := cs.binMapping(stftResult.FreqBins, stftResult.FreqResolution)
	acc := make([]float64, 12)
	for _, frame := range stftResult.Magnitude {
		for f, mag := range frame {
			if pc := mapping[f]; pc >= 0 {
				acc[pc] += mag
			}
		}
	}
	return common.SumNormalize(acc)
}

// binMapping maps each FFT bin to its pitch class or -1 outside the range
func (cs *ChromaSTFT) binMapping(freqBins int, freqResolution float64) []int {
	mapping := make([]int, freqBins)
	for f := range freqBins {
		frequency := float64(f) * freqResolution
		if frequency < cs.MinFreq || frequency > cs.MaxFreq {
			mapping[f] = -1
			continue
		}
		mapping[f] = cs.PitchClass(frequency)
	}
	return mapping
}

// HarmonicBoost reinforces each pitch class with its fifth and the stronger
// of its major/minor third, then renormalizes. Used on melodic stems.
func HarmonicBoost(chroma []float64, fifthWeight, thirdWeight float64) []float64 {
	if len(chroma) != 12 {
		return chroma
	}
	boosted := make([]float64, 12)
	for i := range 12 {
		third := max(chroma[(i+4)%12], chroma[(i+3)%12])
		boosted[i] = chroma[i] + fifthWeight*chroma[(i+7)%12] + thirdWeight*third
	}
	out, ok := common.SumNormalize(boosted)
	if !ok {
		return chroma
	}
	return out
}
