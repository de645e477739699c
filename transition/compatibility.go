// Package transition scores pairs of analysed tracks, builds phased
// stem-mixing plans and executes them against a mixer on a playback clock.
package transition

import (
	"math"

	"github.com/RyanBlaney/sonido-mix/algorithms/tonal"
	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
)

// TempoClass grades how easily two tempos can be matched.
type TempoClass string

const (
	TempoPerfect    TempoClass = "perfect"
	TempoGood       TempoClass = "good"
	TempoAcceptable TempoClass = "acceptable"
	TempoHalfTime   TempoClass = "half_time"
	TempoPoor       TempoClass = "poor"
)

var tempoScores = map[TempoClass]float64{
	TempoPerfect:    1.0,
	TempoGood:       0.9,
	TempoAcceptable: 0.7,
	TempoHalfTime:   0.6,
	TempoPoor:       0.3,
}

// Score is the class's contribution to the overall compatibility.
func (c TempoClass) Score() float64 {
	if s, ok := tempoScores[c]; ok {
		return s
	}
	return tempoScores[TempoPoor]
}

const (
	perfectTempoDelta = 2.0
	goodTempoDelta    = 6.0
	maxStretchRatio   = 1.06
	halfTimeTolerance = 6.0
)

// ClassifyTempo grades a tempo pair.
func ClassifyTempo(bpmA, bpmB float64) TempoClass {
	if bpmA <= 0 || bpmB <= 0 {
		return TempoPoor
	}
	delta := math.Abs(bpmA - bpmB)
	ratio := math.Max(bpmA, bpmB) / math.Min(bpmA, bpmB)
	switch {
	case delta <= perfectTempoDelta:
		return TempoPerfect
	case delta <= goodTempoDelta:
		return TempoGood
	case ratio <= maxStretchRatio:
		return TempoAcceptable
	case ratio <= 2 && (math.Abs(bpmA-bpmB/2) <= halfTimeTolerance || math.Abs(bpmB-bpmA/2) <= halfTimeTolerance):
		return TempoHalfTime
	default:
		return TempoPoor
	}
}

// Compatibility describes how well track A hands over to track B.
type Compatibility struct {
	BPMA         float64        `json:"bpm_a"`
	BPMB         float64        `json:"bpm_b"`
	BPMDelta     float64        `json:"bpm_delta"`
	TempoClass   TempoClass     `json:"tempo_class"`
	KeyA         string         `json:"key_a"`
	KeyB         string         `json:"key_b"`
	KeyRelation  tonal.Relation `json:"key_relation"`
	KeyScore     float64        `json:"key_score"`
	EnergyDelta  float64        `json:"energy_delta"`
	VocalOverlap bool           `json:"vocal_overlap"`
	// Overall is the mean of the tempo class score and the key score.
	Overall float64 `json:"overall"`
}

// Relation renders the key relation for display.
func (c Compatibility) Relation() string {
	return c.KeyRelation.String()
}

// Compare scores the hand-over from a to b.
func Compare(a, b *analysis.TrackAnalysis, cfg config.PlannerConfig) Compatibility {
	ca, cb := a.Key.CamelotCode(), b.Key.CamelotCode()
	c := Compatibility{
		BPMA:         a.BPM(),
		BPMB:         b.BPM(),
		BPMDelta:     math.Abs(a.BPM() - b.BPM()),
		TempoClass:   ClassifyTempo(a.BPM(), b.BPM()),
		KeyA:         a.Key.Camelot,
		KeyB:         b.Key.Camelot,
		KeyRelation:  tonal.RelationBetween(ca, cb),
		KeyScore:     tonal.Compatibility(ca, cb),
		EnergyDelta:  math.Abs(a.Energy.MeanEnergy - b.Energy.MeanEnergy),
		VocalOverlap: VocalOverlap(a, b, cfg.VocalLookahead),
	}
	c.Overall = (c.TempoClass.Score() + c.KeyScore) / 2
	return c
}

// VocalOverlap reports whether A is still singing at or after its mix-out
// point while B's vocals start within lookahead seconds of its mix-in.
func VocalOverlap(a, b *analysis.TrackAnalysis, lookahead float64) bool {
	aSinging := false
	for _, s := range a.Vocals.Sections {
		if s.End > a.MixOutPoint {
			aSinging = true
			break
		}
	}
	if !aSinging {
		return false
	}
	for _, s := range b.Vocals.Sections {
		if s.Start <= b.MixInPoint+lookahead && s.End > b.MixInPoint {
			return true
		}
	}
	return false
}

// SyncMethod is how the two decks are brought to a common tempo.
type SyncMethod string

const (
	SyncNatural     SyncMethod = "natural"
	SyncTimeStretch SyncMethod = "time_stretch"
	SyncNone        SyncMethod = "none"
)

// BeatMatch is the tempo alignment for a transition.
type BeatMatch struct {
	StretchNeeded bool       `json:"stretch_needed"`
	TargetBPM     float64    `json:"target_bpm"`
	StretchA      float64    `json:"stretch_a"`
	StretchB      float64    `json:"stretch_b"`
	Method        SyncMethod `json:"method"`
}

// PlanBeatMatch meets in the middle for small tempo gaps and leaves large
// gaps alone, playing B at its own tempo.
func PlanBeatMatch(bpmA, bpmB float64, cfg config.PlannerConfig) BeatMatch {
	delta := math.Abs(bpmA - bpmB)
	switch {
	case bpmA <= 0 || bpmB <= 0:
		return BeatMatch{TargetBPM: max(bpmA, bpmB), StretchA: 1, StretchB: 1, Method: SyncNone}
	case delta <= cfg.NaturalSyncBPM:
		return BeatMatch{TargetBPM: bpmA, StretchA: 1, StretchB: 1, Method: SyncNatural}
	case delta <= cfg.StretchSyncBPM:
		target := (bpmA + bpmB) / 2
		lo, hi := 1-cfg.MaxStretch, 1+cfg.MaxStretch
		return BeatMatch{
			StretchNeeded: true,
			TargetBPM:     target,
			StretchA:      math.Max(lo, math.Min(hi, target/bpmA)),
			StretchB:      math.Max(lo, math.Min(hi, target/bpmB)),
			Method:        SyncTimeStretch,
		}
	default:
		return BeatMatch{TargetBPM: bpmB, StretchA: 1, StretchB: 1, Method: SyncNone}
	}
}
