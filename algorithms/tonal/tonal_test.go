package tonal

import (
	"testing"
)

func TestCamelotTable(t *testing.T) {
	tests := []struct {
		tonic int
		mode  KeyMode
		want  string
	}{
		{0, Major, "8B"},
		{9, Minor, "8A"},
		{7, Major, "9B"},
		{4, Minor, "9A"},
		{11, Major, "1B"},
		{8, Minor, "1A"},
		{1, Major, "3B"},
		{10, Minor, "3A"},
		{5, Major, "7B"},
		{2, Minor, "7A"},
		{0, Minor, "5A"},
	}
	for _, tt := range tests {
		got := CamelotFor(tt.tonic, tt.mode).String()
		if got != tt.want {
			t.Errorf("CamelotFor(%s) = %s, want %s", KeyName(tt.tonic, tt.mode), got, tt.want)
		}
		parsed, err := ParseCamelot(tt.want)
		if err != nil {
			t.Fatal(err)
		}
		tonic, mode, ok := parsed.Key()
		if !ok || tonic != tt.tonic || mode != tt.mode {
			t.Errorf("%s.Key() = %d %v, want %d %v", tt.want, tonic, mode, tt.tonic, tt.mode)
		}
	}
}

func TestParseCamelotInvalid(t *testing.T) {
	for _, s := range []string{"", "8", "13A", "0B", "8C", "xB"} {
		if _, err := ParseCamelot(s); err == nil {
			t.Errorf("ParseCamelot(%q) succeeded", s)
		}
	}
}

func TestCompatibilityScores(t *testing.T) {
	c := func(s string) Camelot {
		v, err := ParseCamelot(s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	tests := []struct {
		a, b string
		want float64
	}{
		{"8B", "8B", 1.0},
		{"8B", "8A", 0.9},
		{"8B", "9B", 0.8},
		{"12A", "1A", 0.8},
		{"8B", "10B", 0.3},
		{"8B", "9A", 0.3},
	}
	for _, tt := range tests {
		if got := Compatibility(c(tt.a), c(tt.b)); got != tt.want {
			t.Errorf("Compatibility(%s,%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if got := Compatibility(Camelot{}, c("8B")); got != 0 {
		t.Errorf("invalid code compatibility = %v, want 0", got)
	}
}

func TestRelationSymmetric(t *testing.T) {
	var all []Camelot
	for n := 1; n <= 12; n++ {
		all = append(all, Camelot{Number: n, Letter: 'A'}, Camelot{Number: n, Letter: 'B'})
	}
	for _, a := range all {
		for _, b := range all {
			if RelationBetween(a, b) != RelationBetween(b, a) {
				t.Fatalf("relation(%s,%s) not symmetric", a, b)
			}
		}
		if len(Neighbors(a)) != 4 {
			t.Errorf("Neighbors(%s) = %v", a, Neighbors(a))
		}
		for _, n := range Neighbors(a) {
			if Compatibility(a, n) < 0.8 {
				t.Errorf("neighbor %s of %s scores %v", n, a, Compatibility(a, n))
			}
		}
	}
}

func TestEstimateKeyFromTemplate(t *testing.T) {
	ke := NewKeyEstimator()
	// A minor profile rotated to A
	chroma := make([]float64, 12)
	for pc := range 12 {
		chroma[pc] = krumhanslMinor[(pc-9+12)%12]
	}
	best, all, ok := ke.EstimateKey(chroma)
	if !ok {
		t.Fatal("estimate failed")
	}
	if best.Tonic != 9 || best.Mode != Minor {
		t.Errorf("best = %s, want A Minor", best.Name())
	}
	if len(all) != 24 {
		t.Errorf("got %d candidates, want 24", len(all))
	}
	if best.Correlation < 0.99 {
		t.Errorf("correlation = %v, want ~1", best.Correlation)
	}
}

func TestEstimateKeyFlatChroma(t *testing.T) {
	flat := make([]float64, 12)
	for i := range flat {
		flat[i] = 1.0 / 12
	}
	if _, _, ok := NewKeyEstimator().EstimateKey(flat); ok {
		t.Errorf("flat chroma produced a key")
	}
}
