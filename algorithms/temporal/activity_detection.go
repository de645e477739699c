package temporal

// ActivityDetection finds regions where a signal's short-time RMS stays
// above a threshold.
type ActivityDetection struct {
	envelopeExtractor *Envelope
}

// ActiveRegion is a merged run of active windows, times in seconds.
type ActiveRegion struct {
	Start   float64
	End     float64
	PeakRMS float64
	MeanRMS float64
}

// Duration of the region in seconds
func (r ActiveRegion) Duration() float64 {
	return r.End - r.Start
}

// NewActivityDetection creates a new activity detector
func NewActivityDetection() *ActivityDetection {
	return &ActivityDetection{
		envelopeExtractor: NewEnvelope(),
	}
}

// DetectActivity frames the signal with windowSeconds windows advanced by
// hopSeconds, marks windows whose RMS exceeds threshold, merges consecutive
// active windows and drops regions shorter than minDuration.
// Regions are returned in time order and never overlap.
func (ad *ActivityDetection) DetectActivity(signal []float64, sampleRate int, windowSeconds, hopSeconds, threshold, minDuration float64) []ActiveRegion {
	if len(signal) == 0 || sampleRate <= 0 {
		return []ActiveRegion{}
	}

	frameSize := int(windowSeconds * float64(sampleRate))
	hopSize := int(hopSeconds * float64(sampleRate))
	if frameSize <= 0 || hopSize <= 0 {
		return []ActiveRegion{}
	}

	energies := ad.envelopeExtractor.ComputeRMS(signal, frameSize, hopSize)
	if len(energies) == 0 {
		return []ActiveRegion{}
	}

	sr := float64(sampleRate)
	totalDuration := float64(len(signal)) / sr

	var regions []ActiveRegion
	currentStart := -1
	flush := func(endFrame int) {
		// endFrame is the last active frame (inclusive)
		peak, sum := 0.0, 0.0
		for j := currentStart; j <= endFrame; j++ {
			peak = max(peak, energies[j])
			sum += energies[j]
		}
		r := ActiveRegion{
			Start:   float64(currentStart*hopSize) / sr,
			End:     min(float64(endFrame*hopSize+frameSize)/sr, totalDuration),
			PeakRMS: peak,
			MeanRMS: sum / float64(endFrame-currentStart+1),
		}
		if r.Duration() >= minDuration {
			regions = append(regions, r)
		}
		currentStart = -1
	}

	for i, energy := range energies {
		active := energy > threshold
		if active && currentStart == -1 {
			currentStart = i
		} else if !active && currentStart != -1 {
			flush(i - 1)
		}
	}
	if currentStart != -1 {
		flush(len(energies) - 1)
	}

	if regions == nil {
		return []ActiveRegion{}
	}
	// frame rounding can make a region's tail touch the next region's head
	for i := 1; i < len(regions); i++ {
		regions[i-1].End = min(regions[i-1].End, regions[i].Start)
	}
	return regions
}

// ActivityRatio returns the fraction of the signal covered by regions.
func ActivityRatio(regions []ActiveRegion, totalDuration float64) float64 {
	if totalDuration <= 0 {
		return 0
	}
	total := 0.0
	for _, r := range regions {
		total += r.Duration()
	}
	return min(1, total/totalDuration)
}
