package transition

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// Deck identifies one of the two players.
type Deck string

const (
	DeckA Deck = "A" // outgoing
	DeckB Deck = "B" // incoming
)

// Curve is the shape of a gain ramp over a phase.
type Curve string

const (
	CurveLinear     Curve = "linear"
	CurveEqualPower Curve = "equal_power"
	CurveSmoothstep Curve = "smoothstep"
	CurveImmediate  Curve = "immediate"
)

// At maps progress t in [0,1] to ramp progress in [0,1].
func (c Curve) At(t float64) float64 {
	t = common.Clamp01(t)
	switch c {
	case CurveImmediate:
		if t > 0 {
			return 1
		}
		return 0
	case CurveEqualPower:
		return math.Sin(t * math.Pi / 2)
	case CurveSmoothstep:
		return t * t * (3 - 2*t)
	default:
		return t
	}
}

// FilterType selects the optional per-stem filter.
type FilterType string

const (
	FilterNone     FilterType = ""
	FilterLowPass  FilterType = "lowpass"
	FilterHighPass FilterType = "highpass"
)

// Filter is a target cutoff for a stem's filter. A nil *Filter on an action
// means bypass.
type Filter struct {
	Type     FilterType `json:"type"`
	CutoffHz float64    `json:"cutoff_hz"`
}

// Action sets one stem of one deck to a target gain, ramped over the phase
// with Curve.
type Action struct {
	Deck   Deck       `json:"deck"`
	Stem   stems.Name `json:"stem"`
	Volume float64    `json:"volume"` // [0,1]
	Curve  Curve      `json:"curve"`
	Filter *Filter    `json:"filter,omitempty"`
}

// Phase is a group of actions starting Offset seconds into the transition.
type Phase struct {
	Name     string   `json:"name"`
	Offset   float64  `json:"offset"`
	Duration float64  `json:"duration"`
	Actions  []Action `json:"actions"`
}

// End is Offset + Duration.
func (p Phase) End() float64 {
	return p.Offset + p.Duration
}

// Plan is a complete, timed transition from deck A to deck B.
type Plan struct {
	ID                 string        `json:"id"`
	Style              Style         `json:"style"`
	Description        string        `json:"description"`
	Duration           float64       `json:"duration"`
	StartTime          float64       `json:"start_time"` // position in A
	EntryPoint         float64       `json:"entry_point"` // position in B reached at the end
	Phases             []Phase       `json:"phases"`
	Compatibility      Compatibility `json:"compatibility"`
	BeatMatch          BeatMatch     `json:"beat_match"`
	SuccessProbability float64       `json:"success_probability"`
	Fallback           bool          `json:"fallback"`
	Reason             string        `json:"reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Validate checks the structural invariants of a plan: phases start at 0,
// are strictly ordered, tile the plan duration, and every volume is in
// [0,1].
func (p *Plan) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("plan %s has no phases", p.ID)
	}
	if p.Phases[0].Offset != 0 {
		return fmt.Errorf("plan %s: first phase starts at %.2f", p.ID, p.Phases[0].Offset)
	}
	for i, ph := range p.Phases {
		if ph.Duration <= 0 {
			return fmt.Errorf("plan %s: phase %d has non-positive duration", p.ID, i)
		}
		if i > 0 && ph.Offset <= p.Phases[i-1].Offset {
			return fmt.Errorf("plan %s: phase %d not after phase %d", p.ID, i, i-1)
		}
		if i > 0 && math.Abs(ph.Offset-p.Phases[i-1].End()) > 1e-9 {
			return fmt.Errorf("plan %s: gap before phase %d", p.ID, i)
		}
		for _, a := range ph.Actions {
			if a.Volume < 0 || a.Volume > 1 {
				return fmt.Errorf("plan %s: phase %d volume %.2f out of range", p.ID, i, a.Volume)
			}
		}
	}
	if last := p.Phases[len(p.Phases)-1]; math.Abs(last.End()-p.Duration) > 1e-9 {
		return fmt.Errorf("plan %s: phases end at %.2f, plan lasts %.2f", p.ID, last.End(), p.Duration)
	}
	return nil
}

// PhaseAt returns the index of the phase active at elapsed seconds, or -1
// outside the plan.
func (p *Plan) PhaseAt(elapsed float64) int {
	for i, ph := range p.Phases {
		if elapsed >= ph.Offset && elapsed < ph.End() {
			return i
		}
	}
	return -1
}
