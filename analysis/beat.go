package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-mix/algorithms/filters"
	"github.com/RyanBlaney/sonido-mix/algorithms/temporal"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// BeatAnalyzer estimates tempo and builds the beat grid. Drums are the
// primary source; other and vocals cross-check the estimate.
type BeatAnalyzer struct {
	cfg     config.TempoConfig
	tempo   *temporal.TempoEstimation
	onsets  *temporal.OnsetDetection
	tracker *temporal.BeatTracker
	logger  logging.Logger
}

// NewBeatAnalyzer creates a beat analyzer from the tempo settings.
func NewBeatAnalyzer(cfg config.TempoConfig) *BeatAnalyzer {
	te := temporal.NewTempoEstimation()
	te.Bands = te.Bands[:0]
	for _, b := range cfg.Bands {
		te.Bands = append(te.Bands, temporal.TempoBand{MinBPM: b.MinBPM, MaxBPM: b.MaxBPM})
	}
	te.PreferredMinBPM = cfg.PreferredMinBPM
	te.PreferredMaxBPM = cfg.PreferredMaxBPM
	te.OctaveConfidenceRatio = cfg.OctaveConfidenceRatio
	te.AgreementTolerance = cfg.AgreementTolerance

	od := temporal.NewOnsetDetection()
	od.Sensitivity = cfg.OnsetSensitivity

	bt := temporal.NewBeatTracker()
	bt.SnapTolerance = cfg.SnapTolerance

	return &BeatAnalyzer{
		cfg:     cfg,
		tempo:   te,
		onsets:  od,
		tracker: bt,
		logger:  logging.WithFields(logging.Fields{"component": "beat_analyzer"}),
	}
}

// primaryOrder is the preference for the grid source when drums are absent.
var primaryOrder = []stems.Name{stems.Drums, stems.Other, stems.Bass, stems.Vocals}

// secondaryOrder is the cross-validation source preference.
var secondaryOrder = []stems.Name{stems.Other, stems.Vocals}

// AnalyzeTempo estimates BPM and the beat grid for a track of the given
// duration. It never fails: unusable input yields the default tempo with an
// empty grid and the fallback confidence.
func (ba *BeatAnalyzer) AnalyzeTempo(set *stems.StemSet, duration float64) TempoResult {
	var primary *stems.Stem
	var primaryName stems.Name
	for _, name := range primaryOrder {
		if s, ok := set.Get(name); ok {
			primary, primaryName = s, name
			break
		}
	}
	if primary == nil {
		_, err := set.Lookup(stems.Drums)
		return ba.fallback(err)
	}

	estimate, ok := ba.estimate(primary, primaryName == stems.Drums)
	for _, name := range secondaryOrder {
		if name == primaryName {
			continue
		}
		s, present := set.Get(name)
		if !present {
			continue
		}
		if secondary, sok := ba.estimate(s, false); sok {
			estimate = ba.tempo.CrossValidate(estimate, secondary)
			ok = true
		}
		break
	}

	if !ok || estimate.Confidence <= 0 {
		return ba.fallback(fmt.Errorf("%s stem: no periodicity found: %w", primaryName, ErrLowConfidence))
	}

	onsets := ba.onsets.OnsetTimes(primary.Samples, primary.SampleRate)
	beats := ba.tracker.Track(estimate.BPM, onsets, duration)
	grid := ba.buildGrid(beats)

	result := TempoResult{
		BPM:        estimate.BPM,
		BeatGrid:   grid,
		Confidence: estimate.Confidence,
		Stability:  temporal.TempoStability(beats),
		Source:     primaryName,
	}
	if estimate.Confidence < ba.cfg.FallbackConfidence {
		result.Reason = reason(ErrLowConfidence)
	}

	ba.logger.Debug("tempo estimated", logging.Fields{
		"bpm":        result.BPM,
		"confidence": result.Confidence,
		"beats":      len(grid),
		"source":     primaryName,
	})
	return result
}

func (ba *BeatAnalyzer) estimate(s *stems.Stem, transient bool) (temporal.TempoCandidate, bool) {
	var env []float64
	var rate float64
	if transient {
		emphasised := filters.TransientEmphasis(s.Samples, s.SampleRate, ba.cfg.TransientCutoffHz, ba.cfg.TransientNoiseFloor)
		env, rate = ba.tempo.ImpulseEnvelope(emphasised, s.SampleRate)
	} else {
		env, rate = ba.tempo.NoveltyEnvelope(s.Samples, s.SampleRate)
	}
	best, _, ok := ba.tempo.Estimate(env, rate)
	return best, ok
}

// buildGrid labels tracked beats with bar, phrase and section positions.
func (ba *BeatAnalyzer) buildGrid(beats []temporal.Beat) []BeatGridEntry {
	perBar := max(1, ba.cfg.BeatsPerBar)
	perPhrase := max(1, ba.cfg.BeatsPerPhrase)
	perSection := max(1, ba.cfg.BeatsPerSection)

	grid := make([]BeatGridEntry, len(beats))
	for i, b := range beats {
		grid[i] = BeatGridEntry{
			Index:          i,
			Time:           b.Time,
			Bar:            i/perBar + 1,
			BeatInBar:      i%perBar + 1,
			IsDownbeat:     i%perBar == 0,
			IsPhraseStart:  i%perPhrase == 0,
			IsSectionStart: i%perSection == 0,
			Confidence:     b.Confidence,
		}
	}
	return grid
}

func (ba *BeatAnalyzer) fallback(err error) TempoResult {
	ba.logger.Debug("tempo fallback", logging.Fields{"reason": reason(err)})
	return TempoResult{
		BPM:        ba.cfg.DefaultBPM,
		BeatGrid:   []BeatGridEntry{},
		Confidence: ba.cfg.FallbackConfidence,
		Fallback:   true,
		Reason:     reason(err),
	}
}
