package transition

import (
	"fmt"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// Style names a transition technique.
type Style string

const (
	StyleQuickCut          Style = "quick_cut_with_effect"
	StyleHighEnergyOverlap Style = "high_energy_overlap"
	StyleVocalOverMix      Style = "vocal_over_mix"
	StyleRolling           Style = "rolling_transition"
	StyleRelaxed           Style = "relaxed_transition"
	StyleDoubleDrop        Style = "double_drop"
	StyleLoop              Style = "loop_transition"
	StyleFallback          Style = "fallback_crossfade"
)

// Filter cutoffs used by the effect styles.
const (
	sweepHighPassHz = 8000.0
	sweepLowPassHz  = 200.0
	buildLowPassHz  = 400.0
)

type phaseDef struct {
	name    string
	share   float64 // fraction of the style duration
	actions func(c Compatibility) []Action
}

type styleDef struct {
	description string
	duration    float64
	phases      []phaseDef
}

var styleDefs = map[Style]styleDef{
	StyleQuickCut: {
		description: "Filtered quick cut for clashing tempo or key",
		duration:    4,
		phases: []phaseDef{
			{"filter_in", 0.25, func(Compatibility) []Action {
				return join(
					with(all(DeckA, 1, CurveLinear), &Filter{Type: FilterHighPass, CutoffHz: sweepHighPassHz}),
					with(all(DeckB, 0.5, CurveLinear), &Filter{Type: FilterLowPass, CutoffHz: sweepLowPassHz}),
				)
			}},
			{"cut", 0.25, func(Compatibility) []Action {
				return join(
					all(DeckA, 0, CurveImmediate),
					with(all(DeckB, 0.8, CurveLinear), &Filter{Type: FilterLowPass, CutoffHz: sweepLowPassHz}),
				)
			}},
			{"open", 0.5, func(Compatibility) []Action {
				return all(DeckB, 1, CurveSmoothstep)
			}},
		},
	},
	StyleHighEnergyOverlap: {
		description: "Drum-led overlap bridging an energy jump",
		duration:    8,
		phases: []phaseDef{
			{"drums_in", 0.25, func(Compatibility) []Action {
				return set(DeckB, 1, CurveEqualPower, stems.Drums)
			}},
			{"bass_swap", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveImmediate, stems.Bass),
					set(DeckB, 1, CurveImmediate, stems.Bass),
				)
			}},
			{"full_overlap", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0.3, CurveLinear, stems.Vocals),
					set(DeckA, 0.5, CurveLinear, stems.Other),
					set(DeckB, 1, CurveLinear, stems.Other),
					set(DeckB, 0.7, CurveLinear, stems.Vocals),
				)
			}},
			{"release", 0.25, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveLinear), all(DeckB, 1, CurveLinear))
			}},
		},
	},
	StyleVocalOverMix: {
		description: "Instrumental bridge so the two vocals never overlap",
		duration:    16,
		phases: []phaseDef{
			{"instrumental_in", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveEqualPower, stems.Vocals),
					set(DeckB, 0.6, CurveLinear, stems.Drums, stems.Other),
				)
			}},
			{"bass_swap", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveImmediate, stems.Bass),
					set(DeckB, 1, CurveImmediate, stems.Bass),
					set(DeckB, 1, CurveLinear, stems.Drums),
				)
			}},
			{"vocal_handover", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0.4, CurveLinear, stems.Other),
					set(DeckA, 0.5, CurveLinear, stems.Drums),
					set(DeckB, 1, CurveSmoothstep, stems.Vocals, stems.Other),
				)
			}},
			{"outro", 0.25, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveEqualPower), all(DeckB, 1, CurveEqualPower))
			}},
		},
	},
	StyleRolling: {
		description: "Beatmatched rolling blend with a bass swap",
		duration:    16,
		phases: []phaseDef{
			{"intro_layer", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckB, 0.7, CurveLinear, stems.Drums),
					set(DeckB, 0.5, CurveLinear, stems.Other),
				)
			}},
			{"bass_swap", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveImmediate, stems.Bass),
					set(DeckB, 1, CurveImmediate, stems.Bass),
				)
			}},
			{"blend", 0.25, func(c Compatibility) []Action {
				actions := join(
					set(DeckA, 0.5, CurveLinear, stems.Drums, stems.Other),
					set(DeckB, 1, CurveLinear, stems.Drums, stems.Other),
				)
				if c.VocalOverlap {
					return join(actions, set(DeckA, 0, CurveEqualPower, stems.Vocals))
				}
				return join(actions, set(DeckB, 0.6, CurveLinear, stems.Vocals))
			}},
			{"handover", 0.25, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveEqualPower), all(DeckB, 1, CurveEqualPower))
			}},
		},
	},
	StyleRelaxed: {
		description: "Long equal-power blend with staggered stems",
		duration:    24,
		phases: []phaseDef{
			{"tease", 1.0 / 3, func(Compatibility) []Action {
				return join(
					set(DeckB, 0.4, CurveLinear, stems.Other),
					set(DeckB, 0.3, CurveLinear, stems.Drums),
				)
			}},
			{"blend", 1.0 / 3, func(Compatibility) []Action {
				return join(
					set(DeckA, 0.4, CurveLinear, stems.Bass),
					set(DeckA, 0.6, CurveLinear, stems.Drums),
					set(DeckB, 0.8, CurveLinear, stems.Drums),
					set(DeckB, 0.6, CurveLinear, stems.Bass),
				)
			}},
			{"handover", 1.0 / 3, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveEqualPower), all(DeckB, 1, CurveEqualPower))
			}},
		},
	},
	StyleDoubleDrop: {
		description: "Both drops land together on the same downbeat",
		duration:    16,
		phases: []phaseDef{
			{"prepare", 0.25, func(Compatibility) []Action {
				return with(set(DeckB, 0.5, CurveLinear, stems.Drums), &Filter{Type: FilterLowPass, CutoffHz: buildLowPassHz})
			}},
			{"build", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveLinear, stems.Vocals),
					set(DeckB, 1, CurveSmoothstep, stems.Drums),
					set(DeckB, 0.6, CurveLinear, stems.Other),
				)
			}},
			{"drop", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveImmediate, stems.Bass),
					set(DeckA, 0.8, CurveImmediate, stems.Other),
					all(DeckB, 1, CurveImmediate),
				)
			}},
			{"release", 0.25, func(Compatibility) []Action {
				return all(DeckA, 0, CurveLinear)
			}},
		},
	},
	StyleLoop: {
		description: "Loop the outgoing groove while the new track layers in",
		duration:    32,
		phases: []phaseDef{
			{"loop_capture", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveLinear, stems.Vocals),
					set(DeckA, 0.8, CurveLinear, stems.Other),
				)
			}},
			{"layer", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckB, 0.7, CurveLinear, stems.Drums),
					set(DeckB, 0.5, CurveLinear, stems.Other),
				)
			}},
			{"swap", 0.25, func(Compatibility) []Action {
				return join(
					set(DeckA, 0, CurveImmediate, stems.Bass),
					set(DeckA, 0.5, CurveLinear, stems.Drums),
					set(DeckB, 1, CurveImmediate, stems.Bass),
					set(DeckB, 1, CurveLinear, stems.Drums),
				)
			}},
			{"release", 0.25, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveLinear), all(DeckB, 1, CurveLinear))
			}},
		},
	},
	StyleFallback: {
		description: "Safe linear crossfade of all stems",
		duration:    8,
		phases: []phaseDef{
			{"crossfade", 1, func(Compatibility) []Action {
				return join(all(DeckA, 0, CurveLinear), all(DeckB, 1, CurveLinear))
			}},
		},
	},
}

// Styles lists every style, auto-selectable ones first.
func Styles() []Style {
	return []Style{
		StyleQuickCut, StyleHighEnergyOverlap, StyleVocalOverMix, StyleRolling,
		StyleRelaxed, StyleDoubleDrop, StyleLoop, StyleFallback,
	}
}

// ParseStyle accepts a style name.
func ParseStyle(s string) (Style, error) {
	if _, ok := styleDefs[Style(s)]; ok {
		return Style(s), nil
	}
	return "", fmt.Errorf("unknown transition style %q", s)
}

// Duration is the style's nominal length in seconds.
func (s Style) Duration() float64 {
	return styleDefs[s].duration
}

// Description is a one-line summary of the technique.
func (s Style) Description() string {
	return styleDefs[s].description
}

// Phases builds the style's phases over duration seconds. Offsets start at
// 0, increase strictly and the last phase ends at duration. Volumes are
// clamped to [0,1].
func (s Style) Phases(c Compatibility, duration float64) []Phase {
	def, ok := styleDefs[s]
	if !ok || duration <= 0 {
		return nil
	}

	phases := make([]Phase, len(def.phases))
	offset, share := 0.0, 0.0
	for i, pd := range def.phases {
		share += pd.share
		end := duration * share
		if i == len(def.phases)-1 {
			end = duration
		}
		actions := pd.actions(c)
		for j := range actions {
			actions[j].Volume = common.Clamp01(actions[j].Volume)
		}
		phases[i] = Phase{Name: pd.name, Offset: offset, Duration: end - offset, Actions: actions}
		offset = end
	}
	return phases
}

func all(deck Deck, volume float64, curve Curve) []Action {
	return set(deck, volume, curve, stems.All()...)
}

func set(deck Deck, volume float64, curve Curve, names ...stems.Name) []Action {
	out := make([]Action, len(names))
	for i, n := range names {
		out[i] = Action{Deck: deck, Stem: n, Volume: volume, Curve: curve}
	}
	return out
}

func with(actions []Action, f *Filter) []Action {
	for i := range actions {
		actions[i].Filter = f
	}
	return actions
}

func join(groups ...[]Action) []Action {
	var out []Action
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
