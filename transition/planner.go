package transition

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
)

// Success probability adjustments.
const (
	goodTimingBonus = 0.1
	badTimingBonus  = -0.1
	minGoodTiming   = 8.0
	maxGoodTiming   = 16.0
)

var tempoBonus = map[TempoClass]float64{
	TempoPerfect:    0.2,
	TempoGood:       0.1,
	TempoAcceptable: 0,
	TempoPoor:       -0.2,
}

// Planner chooses a transition style for a pair of tracks and builds the
// timed plan.
type Planner struct {
	cfg    config.PlannerConfig
	now    func() time.Time
	logger logging.Logger
}

// NewPlanner creates a planner from the planner settings.
func NewPlanner(cfg config.PlannerConfig) *Planner {
	return &Planner{
		cfg:    cfg,
		now:    time.Now,
		logger: logging.WithFields(logging.Fields{"component": "transition_planner"}),
	}
}

// SelectStyle applies the decision table in priority order.
func (p *Planner) SelectStyle(c Compatibility) Style {
	switch {
	case c.BPMDelta > p.cfg.QuickCutBPMDelta:
		return StyleQuickCut
	case c.KeyScore < p.cfg.MinKeyCompatibility:
		return StyleQuickCut
	case c.EnergyDelta > p.cfg.HighEnergyDelta:
		return StyleHighEnergyOverlap
	case c.VocalOverlap:
		return StyleVocalOverMix
	case c.BPMDelta < p.cfg.RollingBPMDelta && c.KeyScore > p.cfg.RollingKeyCompatibility:
		return StyleRolling
	default:
		return StyleRelaxed
	}
}

// Plan builds the plan for handing over from a to b using the decision
// table. It always returns a valid plan; a plan judged unlikely to succeed
// is replaced by the fallback crossfade.
func (p *Planner) Plan(a, b *analysis.TrackAnalysis) *Plan {
	c := Compare(a, b, p.cfg)
	return p.build(a, b, c, p.SelectStyle(c))
}

// PlanWithStyle builds a plan with an explicitly chosen style. This is the
// only way to get double_drop and loop_transition.
func (p *Planner) PlanWithStyle(a, b *analysis.TrackAnalysis, style Style) (*Plan, error) {
	if _, err := ParseStyle(string(style)); err != nil {
		return nil, err
	}
	return p.build(a, b, Compare(a, b, p.cfg), style), nil
}

// Fallback returns the minimal safe crossfade for a and b.
func (p *Planner) Fallback(a, b *analysis.TrackAnalysis, reason error) *Plan {
	c := Compare(a, b, p.cfg)
	plan := p.assemble(a, b, c, StyleFallback, p.cfg.FallbackDuration)
	plan.Fallback = true
	if reason != nil {
		plan.Reason = reason.Error()
	}
	plan.SuccessProbability = p.successProbability(c, plan.Duration, StyleFallback)
	return plan
}

func (p *Planner) build(a, b *analysis.TrackAnalysis, c Compatibility, style Style) *Plan {
	duration := style.Duration()
	if style == StyleFallback {
		duration = p.cfg.FallbackDuration
	}
	prob := p.successProbability(c, duration, style)

	logger := p.logger.WithFields(logging.Fields{
		"track_a": a.TrackID,
		"track_b": b.TrackID,
		"style":   style,
	})

	// a quick cut is itself the answer to a clash, so it is never rejected
	if style != StyleFallback && style != StyleQuickCut && prob < p.cfg.MinSuccessProbability {
		logger.Info("plan rejected, using fallback", logging.Fields{"success_probability": prob})
		return p.Fallback(a, b, fmt.Errorf("%s at %.2f: %w", style, prob, analysis.ErrPlanRejected))
	}

	plan := p.assemble(a, b, c, style, duration)
	plan.SuccessProbability = prob
	plan.Fallback = style == StyleFallback

	logger.Debug("plan built", logging.Fields{
		"bpm_delta":           c.BPMDelta,
		"key_score":           c.KeyScore,
		"success_probability": prob,
	})
	return plan
}

func (p *Planner) assemble(a, b *analysis.TrackAnalysis, c Compatibility, style Style, duration float64) *Plan {
	return &Plan{
		ID:            uuid.NewString(),
		Style:         style,
		Description:   style.Description(),
		Duration:      duration,
		StartTime:     startTime(a, duration),
		EntryPoint:    EntryPoint(b, p.cfg.EntryFallbackBars),
		Phases:        style.Phases(c, duration),
		Compatibility: c,
		BeatMatch:     PlanBeatMatch(a.BPM(), b.BPM(), p.cfg),
		CreatedAt:     p.now(),
	}
}

// startTime is A's mix-out point pulled back so the transition fits before
// the end of the track.
func startTime(a *analysis.TrackAnalysis, duration float64) float64 {
	t := a.MixOutPoint
	if a.Duration > 0 {
		t = min(t, a.Duration-duration)
	}
	return max(0, t)
}

// successProbability is the compatibility score adjusted for tempo class and
// transition length.
func (p *Planner) successProbability(c Compatibility, duration float64, style Style) float64 {
	timing := badTimingBonus
	if duration >= minGoodTiming && duration <= maxGoodTiming {
		timing = goodTimingBonus
	}
	if style == StyleQuickCut || style == StyleFallback {
		timing = 0
	}
	return common.Clamp01(c.Overall + tempoBonus[c.TempoClass] + timing)
}
