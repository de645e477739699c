// Package analysis derives tempo, key, structure, vocal activity, energy,
// cue points and an overview waveform from a track's stems.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// noStemConfidenceCap bounds the overall confidence of an analysis made
// without any usable stem.
const noStemConfidenceCap = 0.3

// Result is delivered by AnalyzeAsync.
type Result struct {
	Analysis *TrackAnalysis
	Err      error
}

// Analyzer runs the analysis stages in order: tempo, key, structure,
// vocals, energy, cues, waveform. Each stage only reads the stems and the results of
// the stages before it.
type Analyzer struct {
	cfg       config.AnalysisConfig
	beat      *BeatAnalyzer
	key       *KeyDetector
	structure *StructureSegmenter
	vocals    *VocalAnalyzer
	energy    *EnergyProfiler
	cues      *CueSynthesizer
	waveform  *WaveformGenerator
	now       func() time.Time
	logger    logging.Logger
}

// NewAnalyzer creates an analyzer. A nil cfg uses the defaults.
func NewAnalyzer(cfg *config.AnalysisConfig) *Analyzer {
	if cfg == nil {
		defaults := config.DefaultConfig().Analysis
		cfg = &defaults
	}

	return &Analyzer{
		cfg:       *cfg,
		beat:      NewBeatAnalyzer(cfg.Tempo),
		key:       NewKeyDetector(cfg.Key),
		structure: NewStructureSegmenter(cfg.Structure),
		vocals:    NewVocalAnalyzer(cfg.Vocal),
		energy:    NewEnergyProfiler(cfg.Energy),
		cues:      NewCueSynthesizer(cfg.Cues),
		waveform:  NewWaveformGenerator(cfg.Waveform),
		now:       time.Now,
		logger:    logging.WithFields(logging.Fields{"component": "track_analyzer"}),
	}
}

// Analyze runs every stage on track. Missing or degenerate stems never fail
// the analysis; they produce documented fallback values instead. The only
// error is ctx cancellation, checked between stages.
func (an *Analyzer) Analyze(ctx context.Context, track *stems.Track) (*TrackAnalysis, error) {
	if track == nil {
		return nil, fmt.Errorf("analyze: %w", ErrMissingInput)
	}

	logger := an.logger.WithContext(ctx).WithFields(logging.Fields{"track_id": track.ID})
	start := time.Now()

	set := track.Stems
	duration := track.EffectiveDuration()
	a := &TrackAnalysis{
		TrackID:  track.ID,
		Title:    track.Title,
		Artist:   track.Artist,
		Duration: duration,
	}

	stages := []struct {
		name string
		run  func()
	}{
		{"tempo", func() { a.Tempo = an.beat.AnalyzeTempo(set, duration) }},
		{"key", func() { a.Key = an.key.DetectKey(set) }},
		{"structure", func() { a.Structure = an.structure.Segment(set, duration, a.Tempo) }},
		{"vocals", func() { a.Vocals = an.vocals.AnalyzeVocals(set, duration) }},
		{"energy", func() { a.Energy = an.energy.Profile(set, duration) }},
		{"cues", func() { an.cues.Synthesize(a) }},
		{"waveform", func() { a.Waveform = an.waveform.Generate(set) }},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis of %s cancelled before %s stage: %w", track.ID, stage.name, err)
		}
		stage.run()
	}

	a.Confidence = (a.Tempo.Confidence + a.Key.Confidence) / 2
	if len(set.Present()) == 0 {
		a.Confidence = min(a.Confidence, noStemConfidenceCap)
	}
	a.AnalyzedAt = an.now()

	logger.Info("track analysed", logging.Fields{
		"bpm":        a.Tempo.BPM,
		"key":        a.Key.Name,
		"camelot":    a.Key.Camelot,
		"sections":   len(a.Structure.Sections),
		"cues":       len(a.Cues),
		"confidence": a.Confidence,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return a, nil
}

// AnalyzeAsync runs Analyze on its own goroutine. Exactly one Result is
// delivered on the returned channel, which never blocks the sender.
func (an *Analyzer) AnalyzeAsync(ctx context.Context, track *stems.Track) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		a, err := an.Analyze(ctx, track)
		out <- Result{Analysis: a, Err: err}
	}()
	return out
}
