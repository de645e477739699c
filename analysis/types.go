package analysis

import (
	"sort"
	"time"

	"github.com/RyanBlaney/sonido-mix/algorithms/tonal"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// BeatGridEntry is one beat of the grid. Exactly one of every BeatsPerBar
// consecutive entries is a downbeat.
type BeatGridEntry struct {
	Index          int     `json:"index"`
	Time           float64 `json:"time"`
	Bar            int     `json:"bar"`         // 1-based
	BeatInBar      int     `json:"beat_in_bar"` // 1-based
	IsDownbeat     bool    `json:"is_downbeat"`
	IsPhraseStart  bool    `json:"is_phrase_start"`
	IsSectionStart bool    `json:"is_section_start"`
	Confidence     float64 `json:"confidence"`
}

// TempoResult is the outcome of beat and tempo analysis.
type TempoResult struct {
	BPM        float64         `json:"bpm"`
	BeatGrid   []BeatGridEntry `json:"beat_grid"`
	Confidence float64         `json:"confidence"`
	Stability  float64         `json:"stability"`
	Source     stems.Name      `json:"source,omitempty"`
	Fallback   bool            `json:"fallback"`
	Reason     string          `json:"reason,omitempty"`
}

// Downbeats returns the downbeat times in order.
func (t TempoResult) Downbeats() []float64 {
	var out []float64
	for _, b := range t.BeatGrid {
		if b.IsDownbeat {
			out = append(out, b.Time)
		}
	}
	return out
}

// KeyResult is the outcome of key detection.
type KeyResult struct {
	Tonic      int        `json:"tonic"`
	Mode       string     `json:"mode"` // "Major" or "Minor"
	Name       string     `json:"name"` // e.g. "A Minor"
	Camelot    string     `json:"camelot"`
	Confidence float64    `json:"confidence"`
	Source     stems.Name `json:"source,omitempty"`
	Fallback   bool       `json:"fallback"`
	Reason     string     `json:"reason,omitempty"`
}

// CamelotCode parses the stored wheel position; invalid codes return the
// zero value.
func (k KeyResult) CamelotCode() tonal.Camelot {
	c, err := tonal.ParseCamelot(k.Camelot)
	if err != nil {
		return tonal.Camelot{}
	}
	return c
}

// MixableKeys lists the wheel positions that mix harmonically with the key,
// or nil when the key is unknown.
func (k KeyResult) MixableKeys() []string {
	var codes []string
	for _, c := range tonal.Neighbors(k.CamelotCode()) {
		codes = append(codes, c.String())
	}
	return codes
}

// SectionType labels a structural section.
type SectionType string

const (
	SectionIntro        SectionType = "intro"
	SectionVerse        SectionType = "verse"
	SectionChorus       SectionType = "chorus"
	SectionBreakdown    SectionType = "breakdown"
	SectionOutro        SectionType = "outro"
	SectionInstrumental SectionType = "instrumental"
)

// StructuralSection is a contiguous span of the track.
type StructuralSection struct {
	Start      float64     `json:"start"`
	End        float64     `json:"end"`
	Type       SectionType `json:"type"`
	Energy     float64     `json:"energy"` // relative to the loudest window
	HasVocals  bool        `json:"has_vocals"`
	Confidence float64     `json:"confidence"`
}

// StructureResult sections are ordered, non-overlapping and cover
// [0, duration].
type StructureResult struct {
	Sections    []StructuralSection `json:"sections"`
	IntroLength float64             `json:"intro_length"`
	OutroLength float64             `json:"outro_length"`
	Fallback    bool                `json:"fallback"`
	Reason      string              `json:"reason,omitempty"`
}

// SectionAt returns the section containing t.
func (s StructureResult) SectionAt(t float64) (StructuralSection, bool) {
	i := sort.Search(len(s.Sections), func(i int) bool { return s.Sections[i].End > t })
	if i < len(s.Sections) && s.Sections[i].Start <= t {
		return s.Sections[i], true
	}
	return StructuralSection{}, false
}

// VocalType classifies a vocal section by intensity.
type VocalType string

const (
	VocalLead    VocalType = "lead"
	VocalBacking VocalType = "backing"
	VocalTexture VocalType = "texture"
)

// VocalSection is a span of vocal activity at least one second long.
type VocalSection struct {
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Type      VocalType `json:"type"`
	Intensity float64   `json:"intensity"` // peak window RMS
	// Centroid is the mean spectral centroid in Hz; sung lead lines sit
	// roughly between 200 and 2000.
	Centroid float64 `json:"centroid_hz"`
}

// VocalResult sections are ordered and non-overlapping.
type VocalResult struct {
	Sections       []VocalSection `json:"sections"`
	TotalVocalTime float64        `json:"total_vocal_time"`
	VocalDensity   float64        `json:"vocal_density"`
	Reason         string         `json:"reason,omitempty"`
}

// ActiveAt reports whether any vocal section contains t.
func (v VocalResult) ActiveAt(t float64) bool {
	for _, s := range v.Sections {
		if t >= s.Start && t < s.End {
			return true
		}
	}
	return false
}

// FirstStart returns the start of the first vocal section.
func (v VocalResult) FirstStart() (float64, bool) {
	if len(v.Sections) == 0 {
		return 0, false
	}
	return v.Sections[0].Start, true
}

// EnergyLevel is a coarse loudness class.
type EnergyLevel string

const (
	EnergyMinimal EnergyLevel = "minimal"
	EnergyLow     EnergyLevel = "low"
	EnergyMedium  EnergyLevel = "medium"
	EnergyHigh    EnergyLevel = "high"
)

// EnergyWindow holds per-stem RMS for one window.
type EnergyWindow struct {
	Start  float64     `json:"start"`
	End    float64     `json:"end"`
	Bass   float64     `json:"bass"`
	Drums  float64     `json:"drums"`
	Vocals float64     `json:"vocals"`
	Other  float64     `json:"other"`
	Total  float64     `json:"total"`
	Level  EnergyLevel `json:"level"`
}

// EnergyResult is the energy profile of a track.
type EnergyResult struct {
	Windows []EnergyWindow `json:"windows"`
	// MeanEnergy is mean total RMS relative to a reference level, in [0,1].
	MeanEnergy float64 `json:"mean_energy"`
	PeakTotal  float64 `json:"peak_total"`
}

// CueType classifies a cue point.
type CueType string

const (
	CueIntro      CueType = "intro"
	CueVocalIn    CueType = "vocal_in"
	CueChorus     CueType = "chorus"
	CueBreakdown  CueType = "breakdown"
	CueVocalOut   CueType = "vocal_out"
	CueOutro      CueType = "outro"
	CueEnergyUp   CueType = "energy_up"
	CueEnergyDown CueType = "energy_down"
)

// CuePoint is a labelled position a DJ would jump to or mix at.
type CuePoint struct {
	Time     float64 `json:"time"`
	Type     CueType `json:"type"`
	Name     string  `json:"name"`
	Priority int     `json:"priority"`
	Reason   string  `json:"reason,omitempty"`
}

// TransitionPoint is a ranked candidate position for starting a transition.
type TransitionPoint struct {
	Time    float64     `json:"time"`
	Score   float64     `json:"score"`
	Kind    string      `json:"kind"` // phrase, section or structure
	Section SectionType `json:"section,omitempty"`
}

// Waveform is a display overview of the mixed stems: mean spectral
// magnitude in the bass, mid and treble bands at each time, all scaled by
// the single largest value so the bands stay comparable.
type Waveform struct {
	Times  []float64 `json:"times"`
	Bass   []float64 `json:"bass"`
	Mid    []float64 `json:"mid"`
	Treble []float64 `json:"treble"`
	Reason string    `json:"reason,omitempty"`
}

// TrackAnalysis is the complete, immutable analysis of one track.
type TrackAnalysis struct {
	TrackID          string            `json:"track_id"`
	Title            string            `json:"title,omitempty"`
	Artist           string            `json:"artist,omitempty"`
	Duration         float64           `json:"duration"`
	Tempo            TempoResult       `json:"tempo"`
	Key              KeyResult         `json:"key"`
	Structure        StructureResult   `json:"structure"`
	Vocals           VocalResult       `json:"vocals"`
	Energy           EnergyResult      `json:"energy"`
	Cues             []CuePoint        `json:"cues"`
	MixInPoint       float64           `json:"mix_in_point"`
	MixOutPoint      float64           `json:"mix_out_point"`
	TransitionPoints []TransitionPoint `json:"transition_points"`
	Waveform         Waveform          `json:"waveform"`
	Confidence       float64           `json:"confidence"`
	AnalyzedAt       time.Time         `json:"analyzed_at"`
}

// BPM is shorthand for Tempo.BPM.
func (a *TrackAnalysis) BPM() float64 {
	return a.Tempo.BPM
}

// NearestDownbeat returns the downbeat closest to t.
func (a *TrackAnalysis) NearestDownbeat(t float64) (float64, bool) {
	best, found := 0.0, false
	for _, b := range a.Tempo.BeatGrid {
		if !b.IsDownbeat {
			continue
		}
		if !found || abs(b.Time-t) < abs(best-t) {
			best, found = b.Time, true
		}
	}
	return best, found
}

// FirstBeatAtOrAfter returns the first beat at or after t.
func (a *TrackAnalysis) FirstBeatAtOrAfter(t float64) (BeatGridEntry, bool) {
	grid := a.Tempo.BeatGrid
	i := sort.Search(len(grid), func(i int) bool { return grid[i].Time >= t })
	if i < len(grid) {
		return grid[i], true
	}
	return BeatGridEntry{}, false
}

// CuesOfType returns the cues of the given type in time order.
func (a *TrackAnalysis) CuesOfType(t CueType) []CuePoint {
	var out []CuePoint
	for _, c := range a.Cues {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
