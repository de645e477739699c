package spectral

// SpectralCentroid computes the spectral centroid (center of mass) of a spectrum
type SpectralCentroid struct{}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid() *SpectralCentroid {
	return &SpectralCentroid{}
}

// Compute returns the centroid in Hz of one magnitude spectrum whose bins
// are binHz apart. A silent spectrum has centroid 0.
func (sc *SpectralCentroid) Compute(spectrum []float64, binHz float64) float64 {
	num, den := sc.moments(spectrum, binHz)
	if den == 0 {
		return 0
	}
	return num / den
}

// ComputeFrames returns one centroid per STFT frame.
func (sc *SpectralCentroid) ComputeFrames(r *STFTResult) []float64 {
	if r == nil {
		return []float64{}
	}
	centroids := make([]float64, len(r.Magnitude))
	for t, spectrum := range r.Magnitude {
		centroids[t] = sc.Compute(spectrum, r.FreqResolution)
	}
	return centroids
}

// Mean is the centroid of the whole STFT with every frame weighted by its
// magnitude, so quiet frames barely move it.
func (sc *SpectralCentroid) Mean(r *STFTResult) float64 {
	if r == nil {
		return 0
	}
	num, den := 0.0, 0.0
	for _, spectrum := range r.Magnitude {
		n, d := sc.moments(spectrum, r.FreqResolution)
		num += n
		den += d
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func (sc *SpectralCentroid) moments(spectrum []float64, binHz float64) (num, den float64) {
	for i, m := range spectrum {
		num += float64(i) * binHz * m
		den += m
	}
	return num, den
}
