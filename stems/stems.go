// Package stems holds the separated-source audio a track is analysed from.
package stems

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-mix/algorithms/common"
)

// Name identifies one separated source.
type Name string

const (
	Vocals Name = "vocals"
	Drums  Name = "drums"
	Bass   Name = "bass"
	Other  Name = "other"
)

// All returns the four stems in a fixed order.
func All() []Name {
	return []Name{Vocals, Drums, Bass, Other}
}

// ParseName accepts the canonical stem names.
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case Vocals, Drums, Bass, Other:
		return Name(s), nil
	}
	return "", fmt.Errorf("unknown stem %q", s)
}

var (
	// ErrMissingInput marks an absent or empty stem buffer.
	ErrMissingInput = errors.New("missing input")
	// ErrDegenerateSignal marks a stem that is silent or too short to analyse.
	ErrDegenerateSignal = errors.New("degenerate signal")
)

const (
	silencePeak     = 1e-6
	minStemDuration = 0.5
)

// Stem is a mono PCM buffer in [-1, 1].
type Stem struct {
	Samples    []float64
	SampleRate int
}

// Duration in seconds
func (s *Stem) Duration() float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Classify reports why a stem cannot be analysed, or nil when it can.
func Classify(s *Stem) error {
	if s == nil || len(s.Samples) == 0 || s.SampleRate <= 0 {
		return ErrMissingInput
	}
	if s.Duration() < minStemDuration || common.Peak(s.Samples) < silencePeak {
		return ErrDegenerateSignal
	}
	return nil
}

// StemSet is the read-only collection of a track's stems. Analysis never
// modifies the buffers.
type StemSet struct {
	stems map[Name]*Stem
}

// NewStemSet builds a set from the given stems. Nil entries are ignored.
func NewStemSet(stems map[Name]*Stem) *StemSet {
	set := &StemSet{stems: make(map[Name]*Stem, len(stems))}
	for name, s := range stems {
		if s != nil {
			set.stems[name] = s
		}
	}
	return set
}

// Get returns a stem only when it is analysable.
func (ss *StemSet) Get(name Name) (*Stem, bool) {
	s, err := ss.Lookup(name)
	return s, err == nil
}

// Lookup returns the stem or the reason it cannot be used.
func (ss *StemSet) Lookup(name Name) (*Stem, error) {
	if ss == nil {
		return nil, ErrMissingInput
	}
	s := ss.stems[name]
	if err := Classify(s); err != nil {
		return nil, fmt.Errorf("%s stem: %w", name, err)
	}
	return s, nil
}

// Raw returns the stored buffer even if it is degenerate.
func (ss *StemSet) Raw(name Name) (*Stem, bool) {
	if ss == nil {
		return nil, false
	}
	s, ok := ss.stems[name]
	return s, ok
}

// Present lists the analysable stems in canonical order.
func (ss *StemSet) Present() []Name {
	var names []Name
	for _, n := range All() {
		if _, ok := ss.Get(n); ok {
			names = append(names, n)
		}
	}
	return names
}

// Duration is the length of the longest stored stem.
func (ss *StemSet) Duration() float64 {
	if ss == nil {
		return 0
	}
	d := 0.0
	for _, s := range ss.stems {
		d = max(d, s.Duration())
	}
	return d
}

// Track is one playable item.
type Track struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	Duration float64  `json:"duration"`
	Stems    *StemSet `json:"-"`
}

// EffectiveDuration prefers the declared duration and falls back to the
// longest stem.
func (t *Track) EffectiveDuration() float64 {
	if t.Duration > 0 {
		return t.Duration
	}
	return t.Stems.Duration()
}
