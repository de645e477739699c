package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-mix/stems"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]*TrackAnalysis
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]*TrackAnalysis)}
}

func (m *memoryStore) Load(_ context.Context, id string) (*TrackAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) Save(_ context.Context, a *TrackAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[a.TrackID]; !ok {
		m.data[a.TrackID] = a
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type countingAnalyzer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingAnalyzer) Analyze(_ context.Context, track *stems.Track) (*TrackAnalysis, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if c.err != nil {
		return nil, c.err
	}
	return &TrackAnalysis{TrackID: track.ID, Tempo: TempoResult{BPM: 128}}, nil
}

func TestCachePutIsInsertIfAbsent(t *testing.T) {
	cache, err := NewCache(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	first := &TrackAnalysis{TrackID: "t1", Tempo: TempoResult{BPM: 120}}
	second := &TrackAnalysis{TrackID: "t1", Tempo: TempoResult{BPM: 140}}

	if got := cache.Put(context.Background(), first); got != first {
		t.Fatalf("first Put returned %+v", got)
	}
	if got := cache.Put(context.Background(), second); got != first {
		t.Errorf("second Put replaced the analysis")
	}
	if got, ok := cache.Peek("t1"); !ok || got.BPM() != 120 {
		t.Errorf("Peek = %+v, %v", got, ok)
	}
}

func TestCacheGetOrAnalyzeDeduplicates(t *testing.T) {
	cache, err := NewCache(8, nil)
	if err != nil {
		t.Fatal(err)
	}
	analyzer := &countingAnalyzer{delay: 50 * time.Millisecond}
	track := &stems.Track{ID: "shared"}

	var wg sync.WaitGroup
	results := make([]*TrackAnalysis, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := cache.GetOrAnalyze(context.Background(), track, analyzer)
			if err != nil {
				t.Errorf("GetOrAnalyze: %v", err)
				return
			}
			results[i] = a
		}(i)
	}
	wg.Wait()

	if n := analyzer.calls.Load(); n != 1 {
		t.Errorf("analyzer ran %d times, want 1", n)
	}
	for i, a := range results {
		if a != results[0] {
			t.Errorf("caller %d got a different analysis", i)
		}
	}
}

func TestCacheGetOrAnalyzeError(t *testing.T) {
	cache, _ := NewCache(8, nil)
	boom := errors.New("boom")
	_, err := cache.GetOrAnalyze(context.Background(), &stems.Track{ID: "bad"}, &countingAnalyzer{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := cache.Peek("bad"); ok {
		t.Error("failed analysis was cached")
	}
}

func TestCacheStoreTier(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	writer, _ := NewCache(8, store)
	writer.Put(ctx, &TrackAnalysis{TrackID: "persisted", Tempo: TempoResult{BPM: 126}})

	reader, _ := NewCache(8, store)
	if _, ok := reader.Peek("persisted"); ok {
		t.Fatal("Peek should not consult the store")
	}
	got, ok := reader.Get(ctx, "persisted")
	if !ok || got.BPM() != 126 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if _, ok := reader.Peek("persisted"); !ok {
		t.Error("store hit was not promoted to memory")
	}

	if err := reader.Invalidate(ctx, "persisted"); err != nil {
		t.Fatal(err)
	}
	if _, ok := reader.Get(ctx, "persisted"); ok {
		t.Error("invalidated analysis still returned")
	}
	if reader.Len() != 0 {
		t.Errorf("Len = %d after invalidate", reader.Len())
	}
}

func TestCacheEvictsLeastRecent(t *testing.T) {
	cache, _ := NewCache(2, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		cache.Put(ctx, &TrackAnalysis{TrackID: id})
	}
	if _, ok := cache.Peek("a"); ok {
		t.Error("oldest entry not evicted")
	}
	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2", cache.Len())
	}
}

func TestNewCacheRejectsZeroSize(t *testing.T) {
	if _, err := NewCache(0, nil); err == nil {
		t.Error("expected error for zero size")
	}
}
