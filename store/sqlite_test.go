package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-mix/analysis"
)

func openTemp(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "analyses.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(id string, bpm float64) *analysis.TrackAnalysis {
	return &analysis.TrackAnalysis{
		TrackID:     id,
		Duration:    180,
		Tempo:       analysis.TempoResult{BPM: bpm, Confidence: 0.8},
		Key:         analysis.KeyResult{Name: "A Minor", Camelot: "8A"},
		MixOutPoint: 150,
		Cues:        []analysis.CuePoint{{Time: 0, Type: analysis.CueIntro, Name: "Start", Priority: 1}},
		AnalyzedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if err := s.Save(ctx, sample("t1", 124)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM() != 124 || got.Key.Camelot != "8A" || got.MixOutPoint != 150 || len(got.Cues) != 1 {
		t.Errorf("loaded %+v", got)
	}
	if !got.AnalyzedAt.Equal(sample("t1", 124).AnalyzedAt) {
		t.Errorf("AnalyzedAt = %v", got.AnalyzedAt)
	}
}

func TestSaveKeepsFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if err := s.Save(ctx, sample("t1", 124)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, sample("t1", 90)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM() != 124 {
		t.Errorf("BPM = %v, want first write 124", got.BPM())
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d", n)
	}
}

func TestNotFound(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("Load = %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("Delete = %v", err)
	}

	if err := s.Save(ctx, sample("t1", 124)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "t1"); !errors.Is(err, analysis.ErrNotFound) {
		t.Errorf("after delete: %v", err)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyses.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, sample("t1", 124)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Load(ctx, "t1"); err != nil {
		t.Errorf("after reopen: %v", err)
	}
}

func TestCacheUsesStore(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.Save(ctx, sample("t1", 124)); err != nil {
		t.Fatal(err)
	}

	cache, err := analysis.NewCache(4, s)
	if err != nil {
		t.Fatal(err)
	}
	a, ok := cache.Get(ctx, "t1")
	if !ok || a.BPM() != 124 {
		t.Fatalf("Get = %v, %v", a, ok)
	}
	if _, ok := cache.Peek("t1"); !ok {
		t.Error("store hit not kept in memory")
	}
}
