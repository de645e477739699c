package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-mix/algorithms/chroma"
	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/algorithms/tonal"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// KeyDetector estimates the musical key from the harmonic stems and maps it
// to a Camelot wheel position.
type KeyDetector struct {
	cfg       config.KeyConfig
	chroma    *chroma.ChromaSTFT
	estimator *tonal.KeyEstimator
	logger    logging.Logger
}

// NewKeyDetector creates a key detector from the key settings.
func NewKeyDetector(cfg config.KeyConfig) *KeyDetector {
	cs := chroma.NewChromaSTFT()
	cs.TuningFreq = cfg.TuningFreq
	cs.MinFreq = cfg.MinFreq
	cs.MaxFreq = cfg.MaxFreq
	if cfg.MaxFrames > 0 {
		cs.MaxFrames = cfg.MaxFrames
	}

	return &KeyDetector{
		cfg:       cfg,
		chroma:    cs,
		estimator: tonal.NewKeyEstimator(),
		logger:    logging.WithFields(logging.Fields{"component": "key_detector"}),
	}
}

// keyOrder lists stems by how much pitched content they usually carry.
var keyOrder = []stems.Name{stems.Vocals, stems.Other, stems.Bass, stems.Drums}

// boosted stems get fifth and third reinforcement before template matching.
func boosted(name stems.Name) bool {
	return name == stems.Vocals || name == stems.Other
}

// DetectKey analyses every usable stem and keeps the most confident
// estimate. Without a usable estimate it returns C Major (8B) at the
// fallback confidence.
func (kd *KeyDetector) DetectKey(set *stems.StemSet) KeyResult {
	var (
		best     KeyResult
		found    bool
		firstErr error
	)

	for _, name := range keyOrder {
		s, err := set.Lookup(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		vec, ok := kd.chroma.Compute(s.Samples, s.SampleRate)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s stem: no pitched energy: %w", name, ErrDegenerateSignal)
			}
			continue
		}
		if boosted(name) {
			vec = chroma.HarmonicBoost(vec, kd.cfg.FifthBoost, kd.cfg.ThirdBoost)
		}

		candidate, _, ok := kd.estimator.EstimateKey(vec)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s stem: flat chroma: %w", name, ErrLowConfidence)
			}
			continue
		}

		confidence := common.Clamp01(candidate.Correlation)
		kd.logger.Debug("key candidate", logging.Fields{
			"stem":       name,
			"key":        candidate.Name(),
			"confidence": confidence,
		})
		if !found || confidence > best.Confidence {
			best = keyResult(candidate.Tonic, candidate.Mode, confidence)
			best.Source = name
			found = true
		}
	}

	if !found || best.Confidence <= 0 {
		if firstErr == nil {
			firstErr = fmt.Errorf("no positive key correlation: %w", ErrLowConfidence)
		}
		return kd.fallback(firstErr)
	}
	if best.Confidence < kd.cfg.FallbackConfidence {
		best.Reason = reason(ErrLowConfidence)
	}
	return best
}

func keyResult(tonic int, mode tonal.KeyMode, confidence float64) KeyResult {
	return KeyResult{
		Tonic:      tonic,
		Mode:       mode.String(),
		Name:       tonal.KeyName(tonic, mode),
		Camelot:    tonal.CamelotFor(tonic, mode).String(),
		Confidence: confidence,
	}
}

func (kd *KeyDetector) fallback(err error) KeyResult {
	kd.logger.Debug("key fallback", logging.Fields{"reason": reason(err)})
	result := keyResult(0, tonal.Major, kd.cfg.FallbackConfidence)
	result.Fallback = true
	result.Reason = reason(err)
	return result
}
