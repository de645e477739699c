package transition

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/config"
)

func plannerConfig() config.PlannerConfig {
	return config.DefaultConfig().Planner
}

// track builds a 180 s analysis with a steady grid, no vocals, a mix-out at
// 150 s and one transition point there.
func track(id string, bpm float64, camelot string, energy float64) *analysis.TrackAnalysis {
	const duration = 180.0
	var grid []analysis.BeatGridEntry
	if bpm > 0 {
		step := 60 / bpm
		for i := 0; float64(i)*step < duration; i++ {
			grid = append(grid, analysis.BeatGridEntry{
				Index:         i,
				Time:          float64(i) * step,
				Bar:           i/4 + 1,
				BeatInBar:     i%4 + 1,
				IsDownbeat:    i%4 == 0,
				IsPhraseStart: i%32 == 0,
				Confidence:    0.9,
			})
		}
	}
	return &analysis.TrackAnalysis{
		TrackID:          id,
		Duration:         duration,
		Tempo:            analysis.TempoResult{BPM: bpm, BeatGrid: grid, Confidence: 0.9},
		Key:              analysis.KeyResult{Camelot: camelot, Confidence: 0.9},
		Energy:           analysis.EnergyResult{MeanEnergy: energy},
		MixInPoint:       0,
		MixOutPoint:      150,
		TransitionPoints: []analysis.TransitionPoint{{Time: 150, Score: 0.8, Kind: "section"}},
		Confidence:       0.9,
	}
}

func TestClassifyTempo(t *testing.T) {
	tests := []struct {
		a, b float64
		want TempoClass
	}{
		{128, 130, TempoPerfect},
		{130, 128, TempoPerfect},
		{128, 133, TempoGood},
		{120, 126.5, TempoAcceptable},
		{70, 140, TempoHalfTime},
		{120, 145, TempoPoor},
		{0, 120, TempoPoor},
	}
	for _, tt := range tests {
		if got := ClassifyTempo(tt.a, tt.b); got != tt.want {
			t.Errorf("ClassifyTempo(%v, %v) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPlanBeatMatch(t *testing.T) {
	cfg := plannerConfig()

	natural := PlanBeatMatch(128, 129, cfg)
	if natural.Method != SyncNatural || natural.StretchNeeded || natural.TargetBPM != 128 {
		t.Errorf("natural = %+v", natural)
	}

	stretch := PlanBeatMatch(120, 124, cfg)
	if stretch.Method != SyncTimeStretch || !stretch.StretchNeeded {
		t.Fatalf("stretch = %+v", stretch)
	}
	if stretch.TargetBPM != 122 {
		t.Errorf("TargetBPM = %v, want 122", stretch.TargetBPM)
	}
	if math.Abs(stretch.StretchA-122.0/120) > 1e-9 || math.Abs(stretch.StretchB-122.0/124) > 1e-9 {
		t.Errorf("stretch ratios = %v, %v", stretch.StretchA, stretch.StretchB)
	}

	none := PlanBeatMatch(120, 145, cfg)
	if none.Method != SyncNone || none.TargetBPM != 145 || none.StretchA != 1 || none.StretchB != 1 {
		t.Errorf("none = %+v", none)
	}
}

func TestVocalOverlap(t *testing.T) {
	singingOut := func() *analysis.TrackAnalysis {
		a := track("a", 128, "8B", 0.5)
		a.Vocals.Sections = []analysis.VocalSection{{Start: 140, End: 170, Type: analysis.VocalLead}}
		return a
	}
	withVocals := func(start, end float64) *analysis.TrackAnalysis {
		b := track("b", 128, "8B", 0.5)
		b.Vocals.Sections = []analysis.VocalSection{{Start: start, End: end, Type: analysis.VocalLead}}
		return b
	}

	tests := []struct {
		name string
		a, b *analysis.TrackAnalysis
		want bool
	}{
		{"both singing", singingOut(), withVocals(10, 40), true},
		{"b vocals late", singingOut(), withVocals(40, 60), false},
		{"b instrumental", singingOut(), track("b", 128, "8B", 0.5), false},
		{"a finished singing", track("a", 128, "8B", 0.5), withVocals(10, 40), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VocalOverlap(tt.a, tt.b, 30); got != tt.want {
				t.Errorf("VocalOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	c := Compare(track("a", 128, "8B", 0.5), track("b", 130, "9B", 0.2), plannerConfig())

	if c.BPMDelta != 2 || c.TempoClass != TempoPerfect {
		t.Errorf("tempo = %v %s", c.BPMDelta, c.TempoClass)
	}
	if c.KeyScore != 0.8 || c.Relation() != "adjacent" {
		t.Errorf("key = %v %s", c.KeyScore, c.Relation())
	}
	if math.Abs(c.EnergyDelta-0.3) > 1e-9 {
		t.Errorf("EnergyDelta = %v, want 0.3", c.EnergyDelta)
	}
	if math.Abs(c.Overall-0.9) > 1e-9 {
		t.Errorf("Overall = %v, want 0.9", c.Overall)
	}
}

func TestCompareEncodesKeyRelation(t *testing.T) {
	c := Compare(track("a", 128, "8B", 0.5), track("b", 128, "3B", 0.5), plannerConfig())
	if c.Relation() != "energy_shift" {
		t.Fatalf("Relation = %s, want energy_shift", c.Relation())
	}
	if c.KeyScore != 0.3 {
		t.Errorf("KeyScore = %v, want 0.3", c.KeyScore)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"key_relation":"energy_shift"`) {
		t.Errorf("encoded compatibility missing relation: %s", raw)
	}
}
