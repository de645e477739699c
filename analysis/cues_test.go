package analysis

import (
	"math"
	"testing"
)

func songAnalysis() *TrackAnalysis {
	return &TrackAnalysis{
		TrackID:  "song",
		Duration: 180,
		Tempo:    TempoResult{BPM: 120, BeatGrid: steadyGrid(120, 180), Confidence: 0.9},
		Structure: StructureResult{Sections: []StructuralSection{
			{Start: 0, End: 16, Type: SectionIntro},
			{Start: 16, End: 64, Type: SectionVerse, HasVocals: true},
			{Start: 64, End: 96, Type: SectionChorus, HasVocals: true},
			{Start: 96, End: 128, Type: SectionBreakdown},
			{Start: 128, End: 180, Type: SectionOutro},
		}},
		Vocals: VocalResult{Sections: []VocalSection{
			{Start: 30, End: 60, Type: VocalLead},
			{Start: 90, End: 150, Type: VocalLead},
		}},
	}
}

func TestSynthesizeCues(t *testing.T) {
	a := songAnalysis()
	NewCueSynthesizer(defaults().Cues).Synthesize(a)

	want := []struct {
		time float64
		typ  CueType
	}{
		{0, CueIntro},
		{30, CueVocalIn},
		{64, CueChorus},
		{96, CueBreakdown},
		{128, CueOutro},
		{150, CueVocalOut},
	}
	if len(a.Cues) != len(want) {
		t.Fatalf("got %d cues, want %d: %+v", len(a.Cues), len(want), a.Cues)
	}
	for i, w := range want {
		if a.Cues[i].Time != w.time || a.Cues[i].Type != w.typ {
			t.Errorf("cue %d = %+v, want %s at %v", i, a.Cues[i], w.typ, w.time)
		}
	}

	if a.MixInPoint != 0 {
		t.Errorf("MixInPoint = %v, want first downbeat 0", a.MixInPoint)
	}
	if a.MixOutPoint != 150 {
		t.Errorf("MixOutPoint = %v, want Vocal Out at 150", a.MixOutPoint)
	}
}

func TestSynthesizeTransitionPoints(t *testing.T) {
	a := songAnalysis()
	NewCueSynthesizer(defaults().Cues).Synthesize(a)

	points := a.TransitionPoints
	if len(points) != 8 {
		t.Fatalf("got %d transition points, want 8", len(points))
	}
	top := map[float64]bool{points[0].Time: true, points[1].Time: true}
	if !top[64] || !top[128] {
		t.Errorf("top points = %v, %v; want 64 and 128", points[0].Time, points[1].Time)
	}
	for _, p := range points[:2] {
		if p.Kind != "section" {
			t.Errorf("top point %+v is not a section start", p)
		}
	}
	for i := 1; i < len(points); i++ {
		if points[i].Score > points[i-1].Score {
			t.Fatalf("points not ranked at %d: %+v", i, points)
		}
	}
	for _, p := range points {
		if p.Score < 0 || p.Score > 1 {
			t.Errorf("score %v out of [0,1]", p.Score)
		}
	}
}

func TestPhrasePointsCoverWholeGrid(t *testing.T) {
	points := PhrasePoints(songAnalysis())

	// a phrase every 16 s from 16 to 176
	if len(points) != 11 {
		t.Fatalf("got %d phrase points, want 11: %+v", len(points), points)
	}
	for i, p := range points {
		if want := float64(16 * (i + 1)); p.Time != want {
			t.Errorf("point %d at %v, want %v", i, p.Time, want)
		}
	}
	last := points[len(points)-1]
	if last.Section != SectionOutro || math.Abs(last.Score-0.9) > 1e-9 {
		t.Errorf("last point = %+v, want outro scored 0.9", last)
	}
	if points[3].Kind != "section" {
		t.Errorf("64 s point kind = %s, want section", points[3].Kind)
	}
}

func TestMixOutFallsBackWithShortTail(t *testing.T) {
	a := songAnalysis()
	a.Vocals.Sections = []VocalSection{{Start: 30, End: 175}}
	a.Structure.Sections[4].Start = 170
	a.Structure.Sections[3].End = 170
	NewCueSynthesizer(defaults().Cues).Synthesize(a)

	if a.MixOutPoint != 150 {
		t.Errorf("MixOutPoint = %v, want duration-30 = 150", a.MixOutPoint)
	}
}

func TestDedupeKeepsHighestPriority(t *testing.T) {
	cs := NewCueSynthesizer(defaults().Cues)
	got := cs.dedupe([]CuePoint{
		{Time: 10, Type: CueEnergyUp, Priority: priorityEnergyUp},
		{Time: 12, Type: CueChorus, Priority: priorityChorus},
		{Time: 11, Type: CueVocalIn, Priority: priorityVocal},
		{Time: 13, Type: CueVocalOut, Priority: priorityVocal},
		{Time: 30, Type: CueBreakdown, Priority: priorityBreakdown},
	})

	want := []CueType{CueVocalIn, CueVocalOut, CueBreakdown}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want types %v", got, want)
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("cue %d = %s, want %s", i, got[i].Type, w)
		}
	}
}

func TestSynthesizeStartCue(t *testing.T) {
	a := &TrackAnalysis{TrackID: "empty"}
	NewCueSynthesizer(defaults().Cues).Synthesize(a)

	if len(a.Cues) != 1 || a.Cues[0].Name != "Start" || a.Cues[0].Time != 0 {
		t.Fatalf("cues = %+v, want a single Start cue", a.Cues)
	}
	if a.MixInPoint != 0 || a.MixOutPoint != 0 {
		t.Errorf("mix points = %v/%v, want 0/0", a.MixInPoint, a.MixOutPoint)
	}
	if a.TransitionPoints == nil {
		t.Errorf("TransitionPoints should be empty, not nil")
	}
}

func TestSynthesizeEnergyCues(t *testing.T) {
	a := &TrackAnalysis{
		TrackID:  "energy",
		Duration: 20,
		Energy: EnergyResult{Windows: []EnergyWindow{
			{Start: 0, End: 5, Total: 0.05},
			{Start: 5, End: 10, Total: 0.05},
			{Start: 10, End: 15, Total: 0.2},
			{Start: 15, End: 20, Total: 0.02},
		}},
	}
	NewCueSynthesizer(defaults().Cues).Synthesize(a)

	if up := a.CuesOfType(CueEnergyUp); len(up) != 1 || up[0].Time != 10 {
		t.Errorf("energy up cues = %+v, want one at 10", up)
	}
	if down := a.CuesOfType(CueEnergyDown); len(down) != 1 || down[0].Time != 15 {
		t.Errorf("energy down cues = %+v, want one at 15", down)
	}
}
