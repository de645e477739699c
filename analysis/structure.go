package analysis

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
	"github.com/RyanBlaney/sonido-mix/algorithms/temporal"
	"github.com/RyanBlaney/sonido-mix/config"
	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// Fixed layout used when no stem carries energy information.
const (
	fallbackIntroSeconds = 8.0
	fallbackOutroSeconds = 16.0
	fallbackMinDuration  = fallbackIntroSeconds + fallbackOutroSeconds
)

// StructureSegmenter splits a track into labelled sections by looking for
// jumps in the drum energy curve.
type StructureSegmenter struct {
	cfg      config.StructureConfig
	envelope *temporal.Envelope
	logger   logging.Logger
}

// NewStructureSegmenter creates a segmenter from the structure settings.
func NewStructureSegmenter(cfg config.StructureConfig) *StructureSegmenter {
	return &StructureSegmenter{
		cfg:      cfg,
		envelope: temporal.NewEnvelope(),
		logger:   logging.WithFields(logging.Fields{"component": "structure_segmenter"}),
	}
}

// Segment returns sections covering [0, duration]. Boundaries are snapped to
// the nearest downbeat of tempo's grid when one lies within the snap window.
func (sg *StructureSegmenter) Segment(set *stems.StemSet, duration float64, tempo TempoResult) StructureResult {
	if duration <= 0 {
		return StructureResult{Sections: []StructuralSection{}, Fallback: true, Reason: reason(ErrMissingInput)}
	}

	source, name := sg.energySource(set)
	if source == nil {
		_, err := set.Lookup(stems.Drums)
		return sg.fallback(duration, err)
	}

	blocks := sg.envelope.ComputeBlocks(source.Samples, source.SampleRate, sg.cfg.EnergyWindow, common.RMS)
	values := make([]float64, len(blocks))
	for i, b := range blocks {
		values[i] = b.Value
	}
	values = common.MaxNormalize(values)

	var vocalBlocks []temporal.Block
	if v, ok := set.Get(stems.Vocals); ok {
		vocalBlocks = sg.envelope.ComputeBlocks(v.Samples, v.SampleRate, sg.cfg.VocalWindow, common.MeanAbs)
	}

	boundaries := sg.boundaries(blocks, values, duration, tempo.Downbeats())

	edges := append([]float64{0}, boundaries...)
	edges = append(edges, duration)

	sections := make([]StructuralSection, 0, len(edges)-1)
	for i := 0; i+1 < len(edges); i++ {
		start, end := edges[i], edges[i+1]
		energy := meanOver(blocks, values, start, end)
		sections = append(sections, StructuralSection{
			Start:      start,
			End:        end,
			Energy:     energy,
			HasVocals:  sg.vocalsOver(vocalBlocks, start, end),
			Confidence: sg.confidence(energy),
		})
	}
	for i := range sections {
		sections[i].Type = sg.classify(sections[i], i, len(sections))
	}

	result := StructureResult{Sections: sections}
	if sections[0].Type == SectionIntro {
		result.IntroLength = sections[0].End - sections[0].Start
	}
	if last := sections[len(sections)-1]; last.Type == SectionOutro {
		result.OutroLength = last.End - last.Start
	}

	sg.logger.Debug("structure segmented", logging.Fields{
		"sections": len(sections),
		"source":   name,
	})
	return result
}

// energySource prefers drums and otherwise takes the loudest usable stem.
func (sg *StructureSegmenter) energySource(set *stems.StemSet) (*stems.Stem, stems.Name) {
	if s, ok := set.Get(stems.Drums); ok {
		return s, stems.Drums
	}
	var best *stems.Stem
	var bestName stems.Name
	loudest := -1.0
	for _, name := range set.Present() {
		s, _ := set.Get(name)
		if rms := common.RMS(s.Samples); rms > loudest {
			best, bestName, loudest = s, name, rms
		}
	}
	return best, bestName
}

// boundaries returns ascending section boundaries strictly inside
// (0, duration), at least MinSectionSeconds apart and from either end.
func (sg *StructureSegmenter) boundaries(blocks []temporal.Block, values []float64, duration float64, downbeats []float64) []float64 {
	var candidates []float64
	for i := 1; i < len(values); i++ {
		if math.Abs(values[i]-values[i-1]) > sg.cfg.BoundaryThreshold {
			candidates = append(candidates, snapTo(blocks[i].Start, downbeats, sg.cfg.SnapWindow))
		}
	}
	sort.Float64s(candidates)

	var out []float64
	prev := 0.0
	for _, c := range candidates {
		if c-prev < sg.cfg.MinSectionSeconds || duration-c < sg.cfg.MinSectionSeconds {
			continue
		}
		out = append(out, c)
		prev = c
	}
	return out
}

// snapTo moves t to the nearest of the sorted points within window.
func snapTo(t float64, points []float64, window float64) float64 {
	if len(points) == 0 {
		return t
	}
	i := sort.SearchFloat64s(points, t)
	best, dist := t, math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(points) {
			continue
		}
		if d := math.Abs(points[j] - t); d < dist {
			best, dist = points[j], d
		}
	}
	if dist <= window {
		return best
	}
	return t
}

// meanOver averages the block values whose midpoints fall in [start, end).
func meanOver(blocks []temporal.Block, values []float64, start, end float64) float64 {
	sum, n := 0.0, 0
	for i, b := range blocks {
		mid := (b.Start + b.End) / 2
		if mid >= start && mid < end {
			sum += values[i]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (sg *StructureSegmenter) vocalsOver(blocks []temporal.Block, start, end float64) bool {
	if len(blocks) == 0 {
		return false
	}
	values := make([]float64, len(blocks))
	for i, b := range blocks {
		values[i] = b.Value
	}
	return meanOver(blocks, values, start, end) > sg.cfg.VocalActivity
}

// classify applies the labelling rules in order; the first match wins.
func (sg *StructureSegmenter) classify(s StructuralSection, index, count int) SectionType {
	low := s.Energy < sg.cfg.LowEnergy
	high := s.Energy >= sg.cfg.HighEnergy
	switch {
	case index == 0 && low:
		return SectionIntro
	case index == count-1 && count > 1:
		return SectionOutro
	case high && s.HasVocals:
		return SectionChorus
	case low:
		return SectionBreakdown
	case s.HasVocals:
		return SectionVerse
	default:
		return SectionInstrumental
	}
}

// confidence grows with the distance of a section's energy from the
// nearest classification threshold.
func (sg *StructureSegmenter) confidence(energy float64) float64 {
	margin := math.Min(math.Abs(energy-sg.cfg.HighEnergy), math.Abs(energy-sg.cfg.LowEnergy))
	return common.Clamp01(0.5 + margin)
}

func (sg *StructureSegmenter) fallback(duration float64, err error) StructureResult {
	sg.logger.Debug("structure fallback", logging.Fields{"reason": reason(err)})
	result := StructureResult{Fallback: true, Reason: reason(err)}
	if duration <= fallbackMinDuration {
		result.Sections = []StructuralSection{{
			Start: 0, End: duration, Type: SectionInstrumental, Confidence: 0.2,
		}}
		return result
	}
	outroStart := duration - fallbackOutroSeconds
	result.Sections = []StructuralSection{
		{Start: 0, End: fallbackIntroSeconds, Type: SectionIntro, Confidence: 0.2},
		{Start: fallbackIntroSeconds, End: outroStart, Type: SectionInstrumental, Confidence: 0.2},
		{Start: outroStart, End: duration, Type: SectionOutro, Confidence: 0.2},
	}
	result.IntroLength = fallbackIntroSeconds
	result.OutroLength = fallbackOutroSeconds
	return result
}
