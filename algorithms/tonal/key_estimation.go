package tonal

import (
	"fmt"
	"sort"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
)

// KeyMode represents major or minor
type KeyMode int

const (
	Major KeyMode = iota
	Minor
)

func (m KeyMode) String() string {
	if m == Minor {
		return "Minor"
	}
	return "Major"
}

// Krumhansl-Kessler probe-tone profiles, index 0 = tonic.
var (
	krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var (
	majorNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}
	minorNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}
)

// KeyCandidate is one template match
type KeyCandidate struct {
	Tonic       int     `json:"tonic"` // pitch class, 0 = C
	Mode        KeyMode `json:"mode"`
	Correlation float64 `json:"correlation"`
}

// Name returns e.g. "A Minor"
func (kc KeyCandidate) Name() string {
	return KeyName(kc.Tonic, kc.Mode)
}

// KeyName formats a tonic and mode for display.
func KeyName(tonic int, mode KeyMode) string {
	tonic = ((tonic % 12) + 12) % 12
	if mode == Minor {
		return fmt.Sprintf("%s %s", minorNames[tonic], mode)
	}
	return fmt.Sprintf("%s %s", majorNames[tonic], mode)
}

// KeyEstimator scores a chroma vector against the 24 rotated
// Krumhansl-Schmuckler templates.
type KeyEstimator struct {
	templates [24][12]float64
}

// NewKeyEstimator builds the 24 templates
func NewKeyEstimator() *KeyEstimator {
	ke := &KeyEstimator{}
	for tonic := range 12 {
		for pc := range 12 {
			rel := (pc - tonic + 12) % 12
			ke.templates[tonic][pc] = krumhanslMajor[rel]
			ke.templates[12+tonic][pc] = krumhanslMinor[rel]
		}
	}
	return ke
}

// EstimateKey returns the best candidate and all 24 candidates sorted by
// descending correlation. ok is false for a chroma vector with no variance.
func (ke *KeyEstimator) EstimateKey(chroma []float64) (KeyCandidate, []KeyCandidate, bool) {
	if len(chroma) != 12 || common.StandardDeviation(chroma) < 1e-12 {
		return KeyCandidate{}, nil, false
	}

	candidates := make([]KeyCandidate, 0, 24)
	for i := range 24 {
		mode := Major
		if i >= 12 {
			mode = Minor
		}
		candidates = append(candidates, KeyCandidate{
			Tonic:       i % 12,
			Mode:        mode,
			Correlation: common.Correlation(chroma, ke.templates[i][:]),
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Correlation > candidates[b].Correlation
	})
	return candidates[0], candidates, true
}
