package analysis

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
)

// Cue priorities, highest first.
const (
	priorityVocal      = 10
	priorityChorus     = 8
	prioritySection    = 7
	priorityBreakdown  = 6
	priorityEnergyUp   = 5
	priorityEnergyDown = 4
	priorityStart      = 1
)

// maxMixInFraction caps the mix-in point to the first part of the track.
const maxMixInFraction = 0.3

// Transition point scoring.
const (
	phraseBaseScore  = 0.5
	sectionBaseScore = 0.7
	vocalFreeBonus   = 0.1
)

var sectionBonus = map[SectionType]float64{
	SectionBreakdown:    0.3,
	SectionOutro:        0.3,
	SectionChorus:       0.2,
	SectionIntro:        0.1,
	SectionInstrumental: 0.1,
}

// CueSynthesizer derives cue points, mix points and ranked transition
// points from the earlier stage results.
type CueSynthesizer struct {
	cfg    config.CueConfig
	logger logging.Logger
}

// NewCueSynthesizer creates a synthesizer from the cue settings.
func NewCueSynthesizer(cfg config.CueConfig) *CueSynthesizer {
	return &CueSynthesizer{
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{"component": "cue_synthesizer"}),
	}
}

// Synthesize fills Cues, MixInPoint, MixOutPoint and TransitionPoints of a
// from its tempo, structure, vocal and energy results. It always produces at
// least one cue.
func (cs *CueSynthesizer) Synthesize(a *TrackAnalysis) {
	cues := cs.dedupe(cs.candidates(a))
	if len(cues) == 0 {
		cues = []CuePoint{{Time: 0, Type: CueIntro, Name: "Start", Priority: priorityStart, Reason: "no structural cues"}}
	}
	a.Cues = cues
	a.MixInPoint = cs.mixIn(a)
	a.MixOutPoint = cs.mixOut(a)
	a.TransitionPoints = cs.transitionPoints(a)

	cs.logger.Debug("cues synthesized", logging.Fields{
		"track_id": a.TrackID,
		"cues":     len(cues),
		"mix_in":   a.MixInPoint,
		"mix_out":  a.MixOutPoint,
	})
}

func (cs *CueSynthesizer) candidates(a *TrackAnalysis) []CuePoint {
	var cues []CuePoint

	if n := len(a.Vocals.Sections); n > 0 {
		first, last := a.Vocals.Sections[0], a.Vocals.Sections[n-1]
		cues = append(cues,
			CuePoint{Time: first.Start, Type: CueVocalIn, Name: "Vocal In", Priority: priorityVocal, Reason: "first vocal section"},
			CuePoint{Time: last.End, Type: CueVocalOut, Name: "Vocal Out", Priority: priorityVocal, Reason: "last vocal section ends"},
		)
	}

	for _, s := range a.Structure.Sections {
		switch s.Type {
		case SectionIntro:
			cues = append(cues, CuePoint{Time: s.Start, Type: CueIntro, Name: "Intro", Priority: prioritySection, Reason: "intro section"})
		case SectionChorus:
			cues = append(cues, CuePoint{Time: s.Start, Type: CueChorus, Name: "Chorus", Priority: priorityChorus, Reason: "high energy with vocals"})
		case SectionBreakdown:
			cues = append(cues, CuePoint{Time: s.Start, Type: CueBreakdown, Name: "Breakdown", Priority: priorityBreakdown, Reason: "low energy section"})
		case SectionOutro:
			cues = append(cues, CuePoint{Time: s.Start, Type: CueOutro, Name: "Outro", Priority: prioritySection, Reason: "final section"})
		}
	}

	totals := make([]float64, len(a.Energy.Windows))
	for i, w := range a.Energy.Windows {
		totals[i] = w.Total
	}
	norm := common.MaxNormalize(totals)
	for i := 1; i < len(norm); i++ {
		delta := norm[i] - norm[i-1]
		t := a.Energy.Windows[i].Start
		switch {
		case delta > cs.cfg.EnergyChangeThreshold:
			cues = append(cues, CuePoint{Time: t, Type: CueEnergyUp, Name: "Energy Up", Priority: priorityEnergyUp,
				Reason: fmt.Sprintf("energy +%.2f", delta)})
		case delta < -cs.cfg.EnergyChangeThreshold:
			cues = append(cues, CuePoint{Time: t, Type: CueEnergyDown, Name: "Energy Down", Priority: priorityEnergyDown,
				Reason: fmt.Sprintf("energy %.2f", delta)})
		}
	}
	return cues
}

// dedupe keeps, within every MinSpacing neighbourhood, the highest-priority
// cue. Cues at or above VeryHighPriority are always kept. The result is in
// time order.
func (cs *CueSynthesizer) dedupe(cues []CuePoint) []CuePoint {
	sort.SliceStable(cues, func(i, j int) bool {
		if cues[i].Priority != cues[j].Priority {
			return cues[i].Priority > cues[j].Priority
		}
		return cues[i].Time < cues[j].Time
	})

	kept := make([]CuePoint, 0, len(cues))
	for _, c := range cues {
		if c.Priority < cs.cfg.VeryHighPriority && crowded(kept, c.Time, cs.cfg.MinSpacing) {
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Time != kept[j].Time {
			return kept[i].Time < kept[j].Time
		}
		return kept[i].Priority > kept[j].Priority
	})
	return kept
}

func crowded(kept []CuePoint, t, spacing float64) bool {
	for _, k := range kept {
		if abs(k.Time-t) < spacing {
			return true
		}
	}
	return false
}

func (cs *CueSynthesizer) mixIn(a *TrackAnalysis) float64 {
	point := 0.0
	if downbeats := a.Tempo.Downbeats(); len(downbeats) > 0 {
		point = downbeats[0]
	} else if intro := a.CuesOfType(CueIntro); len(intro) > 0 {
		point = intro[0].Time
	}
	if a.Duration > 0 {
		point = min(point, a.Duration*maxMixInFraction)
	}
	return max(0, point)
}

func (cs *CueSynthesizer) mixOut(a *TrackAnalysis) float64 {
	best, found := 0.0, false
	for _, c := range a.Cues {
		if c.Type != CueVocalOut && c.Type != CueOutro {
			continue
		}
		if c.Time < a.MixInPoint || a.Duration-c.Time <= cs.cfg.MinTail {
			continue
		}
		if !found || c.Time > best {
			best, found = c.Time, true
		}
	}
	if found {
		return best
	}
	return max(a.MixInPoint, a.Duration-cs.cfg.FallbackOutroOffset)
}

// PhrasePoints scores every phrase and section start of the beat grid, or
// every section start when there is no grid, in time order. Breakdowns and
// outros score highest and vocal-free points get a bonus.
func PhrasePoints(a *TrackAnalysis) []TransitionPoint {
	points := []TransitionPoint{}
	score := func(t, base float64) (float64, SectionType) {
		s := base
		section, ok := a.Structure.SectionAt(t)
		if ok {
			s += sectionBonus[section.Type]
		}
		if !a.Vocals.ActiveAt(t) {
			s += vocalFreeBonus
		}
		return common.Clamp01(s), section.Type
	}

	for _, b := range a.Tempo.BeatGrid {
		if !b.IsPhraseStart || b.Time <= 0 {
			continue
		}
		kind, base := "phrase", phraseBaseScore
		if b.IsSectionStart {
			kind, base = "section", sectionBaseScore
		}
		s, st := score(b.Time, base)
		points = append(points, TransitionPoint{Time: b.Time, Score: s, Kind: kind, Section: st})
	}
	if len(points) == 0 {
		for _, sec := range a.Structure.Sections {
			if sec.Start <= 0 {
				continue
			}
			s, st := score(sec.Start, sectionBaseScore)
			points = append(points, TransitionPoint{Time: sec.Start, Score: s, Kind: "structure", Section: st})
		}
	}
	return points
}

// transitionPoints keeps the best MaxTransitionPoints of PhrasePoints,
// highest score first.
func (cs *CueSynthesizer) transitionPoints(a *TrackAnalysis) []TransitionPoint {
	points := PhrasePoints(a)
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		return points[i].Time < points[j].Time
	})
	if n := cs.cfg.MaxTransitionPoints; n > 0 && len(points) > n {
		points = points[:n]
	}
	return points
}
