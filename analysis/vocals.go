package analysis

import (
	"github.com/RyanBlaney/sonido-mix/algorithms/spectral"
	"github.com/RyanBlaney/sonido-mix/algorithms/temporal"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// VocalAnalyzer finds where the vocal stem is active and how prominent each
// passage is.
type VocalAnalyzer struct {
	cfg      config.VocalConfig
	activity *temporal.ActivityDetection
	stft     *spectral.STFT
	centroid *spectral.SpectralCentroid
	logger   logging.Logger
}

const (
	centroidWindow = 2048
	centroidHop    = 1024
)

// NewVocalAnalyzer creates a vocal analyzer from the vocal settings.
func NewVocalAnalyzer(cfg config.VocalConfig) *VocalAnalyzer {
	return &VocalAnalyzer{
		cfg:      cfg,
		activity: temporal.NewActivityDetection(),
		stft:     spectral.NewSTFT(),
		centroid: spectral.NewSpectralCentroid(),
		logger:   logging.WithFields(logging.Fields{"component": "vocal_analyzer"}),
	}
}

// AnalyzeVocals returns ordered, non-overlapping vocal sections of at least
// MinDuration seconds. A missing or silent vocal stem yields no sections.
func (va *VocalAnalyzer) AnalyzeVocals(set *stems.StemSet, duration float64) VocalResult {
	v, err := set.Lookup(stems.Vocals)
	if err != nil {
		return VocalResult{Sections: []VocalSection{}, Reason: reason(err)}
	}

	regions := va.activity.DetectActivity(v.Samples, v.SampleRate,
		va.cfg.Window, va.cfg.Hop, va.cfg.Threshold, va.cfg.MinDuration)

	sections := make([]VocalSection, 0, len(regions))
	total := 0.0
	for _, r := range regions {
		end := r.End
		if duration > 0 {
			end = min(end, duration)
		}
		if end-r.Start < va.cfg.MinDuration {
			continue
		}
		sections = append(sections, VocalSection{
			Start:     r.Start,
			End:       end,
			Type:      va.classify(r.PeakRMS),
			Intensity: r.PeakRMS,
			Centroid:  va.sectionCentroid(v, r.Start, end),
		})
		total += end - r.Start
	}

	result := VocalResult{Sections: sections, TotalVocalTime: total}
	if duration > 0 {
		result.VocalDensity = min(1, total/duration)
	}

	va.logger.Debug("vocals analysed", logging.Fields{
		"sections": len(sections),
		"density":  result.VocalDensity,
	})
	return result
}

// sectionCentroid is 0 when the section is shorter than one analysis window.
func (va *VocalAnalyzer) sectionCentroid(v *stems.Stem, start, end float64) float64 {
	lo := max(0, int(start*float64(v.SampleRate)))
	hi := min(len(v.Samples), int(end*float64(v.SampleRate)))
	if hi-lo < centroidWindow {
		return 0
	}
	r, err := va.stft.Compute(v.Samples[lo:hi], centroidWindow, centroidHop, v.SampleRate)
	if err != nil {
		return 0
	}
	return va.centroid.Mean(r)
}

func (va *VocalAnalyzer) classify(peak float64) VocalType {
	switch {
	case peak >= va.cfg.LeadPeak:
		return VocalLead
	case peak >= va.cfg.BackingPeak:
		return VocalBacking
	default:
		return VocalTexture
	}
}
