package temporal

import (
	"github.com/RyanBlaney/sonido-mix/algorithms/common"
)

// Envelope provides amplitude envelope extraction
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMS computes RMS envelope with given frame and hop sizes.
// Only complete frames are returned.
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	return e.compute(signal, frameSize, hopSize, common.RMS)
}

// ComputeMeanAbs computes a mean absolute amplitude envelope.
func (e *Envelope) ComputeMeanAbs(signal []float64, frameSize, hopSize int) []float64 {
	return e.compute(signal, frameSize, hopSize, common.MeanAbs)
}

func (e *Envelope) compute(signal []float64, frameSize, hopSize int, fn func([]float64) float64) []float64 {
	if len(signal) < frameSize || frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)
	for i := range numFrames {
		start := i * hopSize
		envelope[i] = fn(signal[start : start+frameSize])
	}
	return envelope
}

// Block is one non-overlapping analysis window.
type Block struct {
	Start float64 // seconds
	End   float64 // seconds
	Value float64
}

// ComputeBlocks splits the signal into consecutive windows of blockSeconds
// and applies fn to each. The final partial window is kept so the blocks
// cover the whole signal.
func (e *Envelope) ComputeBlocks(signal []float64, sampleRate int, blockSeconds float64, fn func([]float64) float64) []Block {
	if len(signal) == 0 || sampleRate <= 0 || blockSeconds <= 0 {
		return []Block{}
	}
	blockSize := int(blockSeconds * float64(sampleRate))
	if blockSize <= 0 {
		return []Block{}
	}

	sr := float64(sampleRate)
	blocks := make([]Block, 0, len(signal)/blockSize+1)
	for start := 0; start < len(signal); start += blockSize {
		end := min(start+blockSize, len(signal))
		blocks = append(blocks, Block{
			Start: float64(start) / sr,
			End:   float64(end) / sr,
			Value: fn(signal[start:end]),
		})
	}
	return blocks
}

// ComputeSmoothed computes smoothed envelope using a centered moving average
func (e *Envelope) ComputeSmoothed(envelope []float64, windowSize int) []float64 {
	return common.MovingAverage(envelope, windowSize)
}
