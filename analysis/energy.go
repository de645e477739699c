package analysis

import (
	"math"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// EnergyProfiler measures per-stem loudness over fixed windows.
type EnergyProfiler struct {
	cfg    config.EnergyConfig
	logger logging.Logger
}

// NewEnergyProfiler creates a profiler from the energy settings.
func NewEnergyProfiler(cfg config.EnergyConfig) *EnergyProfiler {
	return &EnergyProfiler{
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{"component": "energy_profiler"}),
	}
}

// Profile returns one window per Window seconds of duration. Absent stems
// contribute zero and are left out of the total.
func (ep *EnergyProfiler) Profile(set *stems.StemSet, duration float64) EnergyResult {
	if duration <= 0 || ep.cfg.Window <= 0 {
		return EnergyResult{Windows: []EnergyWindow{}}
	}

	present := set.Present()
	count := int(math.Ceil(duration / ep.cfg.Window))
	windows := make([]EnergyWindow, count)
	totals := make([]float64, count)

	for i := range windows {
		start := float64(i) * ep.cfg.Window
		end := min(start+ep.cfg.Window, duration)
		w := EnergyWindow{Start: start, End: end}

		sum := 0.0
		for _, name := range present {
			s, _ := set.Get(name)
			rms := common.RMS(slice(s, start, end))
			switch name {
			case stems.Bass:
				w.Bass = rms
			case stems.Drums:
				w.Drums = rms
			case stems.Vocals:
				w.Vocals = rms
			case stems.Other:
				w.Other = rms
			}
			sum += rms
		}
		if len(present) > 0 {
			w.Total = sum / float64(len(present))
		}
		w.Level = ep.level(w.Total)
		windows[i] = w
		totals[i] = w.Total
	}

	result := EnergyResult{
		Windows:    windows,
		MeanEnergy: common.Clamp01(common.Mean(totals) / ep.cfg.ReferenceRMS),
		PeakTotal:  common.Max(totals),
	}
	ep.logger.Debug("energy profiled", logging.Fields{
		"windows":     count,
		"mean_energy": result.MeanEnergy,
	})
	return result
}

func (ep *EnergyProfiler) level(total float64) EnergyLevel {
	switch {
	case total < ep.cfg.MinimalMax:
		return EnergyMinimal
	case total < ep.cfg.LowMax:
		return EnergyLow
	case total < ep.cfg.MediumMax:
		return EnergyMedium
	default:
		return EnergyHigh
	}
}

// slice returns the samples of s between start and end seconds.
func slice(s *stems.Stem, start, end float64) []float64 {
	sr := float64(s.SampleRate)
	lo := min(len(s.Samples), max(0, int(start*sr)))
	hi := min(len(s.Samples), max(lo, int(end*sr)))
	return s.Samples[lo:hi]
}
