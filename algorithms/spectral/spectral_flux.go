package spectral

// SpectralFlux measures frame-to-frame spectral change. Only increases in
// magnitude count, which makes it an onset strength function.
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// FrameFlux returns the sum of positive magnitude increases between two
// frames divided by the frame length. Frames of different length are
// compared over their common prefix.
func (sf *SpectralFlux) FrameFlux(prev, cur []float64) float64 {
	n := min(len(prev), len(cur))
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := range n {
		if d := cur[i] - prev[i]; d > 0 {
			sum += d
		}
	}
	return sum / float64(n)
}

// Compute calculates the flux series for a spectrogram (time x frequency).
// The result has one value per frame; the first frame has zero flux.
func (sf *SpectralFlux) Compute(spectrogram [][]float64) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}
	flux := make([]float64, len(spectrogram))
	for t := 1; t < len(spectrogram); t++ {
		flux[t] = sf.FrameFlux(spectrogram[t-1], spectrogram[t])
	}
	return flux
}
