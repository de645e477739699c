package filters

// TransientEmphasis sharpens percussive attacks: high-pass the signal, then
// keep only the rising part of the first difference above noiseFloor.
// The output has the same length as x and is never negative.
func TransientEmphasis(x []float64, sampleRate int, cutoffFreq, noiseFloor float64) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		return out
	}

	hp := NewHighPassWithCutoff(sampleRate, cutoffFreq)
	filtered := hp.ProcessBuffer(x)

	for i := 1; i < len(filtered); i++ {
		d := filtered[i] - filtered[i-1]
		if d > noiseFloor {
			out[i] = d - noiseFloor
		}
	}
	return out
}
