package analysis

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/RyanBlaney/sonido-mix/logging"
	"github.com/RyanBlaney/sonido-mix/stems"
)

// ErrNotFound is returned by a Store that has no analysis for a track.
var ErrNotFound = errors.New("analysis not found")

// Store persists analyses between runs.
type Store interface {
	Load(ctx context.Context, trackID string) (*TrackAnalysis, error)
	// Save must keep the first analysis written for a track.
	Save(ctx context.Context, a *TrackAnalysis) error
	Delete(ctx context.Context, trackID string) error
}

// TrackAnalyzer produces an analysis for one track.
type TrackAnalyzer interface {
	Analyze(ctx context.Context, track *stems.Track) (*TrackAnalysis, error)
}

// Cache memoizes analyses by track ID. Each track is analysed at most once
// at a time and the first stored analysis wins; later writes for the same
// ID are ignored until Invalidate.
type Cache struct {
	entries *lru.Cache[string, *TrackAnalysis]
	store   Store
	flight  singleflight.Group
	logger  logging.Logger
}

// NewCache creates a cache holding up to size analyses. store may be nil.
func NewCache(size int, store Store) (*Cache, error) {
	entries, err := lru.New[string, *TrackAnalysis](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &Cache{
		entries: entries,
		store:   store,
		logger:  logging.WithFields(logging.Fields{"component": "analysis_cache"}),
	}, nil
}

// Peek returns a cached analysis without touching the store or recency.
// It never blocks on a running analysis.
func (c *Cache) Peek(trackID string) (*TrackAnalysis, bool) {
	return c.entries.Peek(trackID)
}

// Get returns the analysis from memory, falling back to the store.
func (c *Cache) Get(ctx context.Context, trackID string) (*TrackAnalysis, bool) {
	if a, ok := c.entries.Get(trackID); ok {
		return a, true
	}
	if c.store == nil {
		return nil, false
	}

	a, err := c.store.Load(ctx, trackID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("store load failed", logging.Fields{"track_id": trackID, "error": err.Error()})
		}
		return nil, false
	}
	return c.Put(ctx, a), true
}

// Put inserts a unless an analysis for the same track is already cached,
// and returns the analysis that is now cached.
func (c *Cache) Put(ctx context.Context, a *TrackAnalysis) *TrackAnalysis {
	if prev, ok, _ := c.entries.PeekOrAdd(a.TrackID, a); ok {
		return prev
	}
	if c.store != nil {
		if err := c.store.Save(ctx, a); err != nil {
			c.logger.Warn("store save failed", logging.Fields{"track_id": a.TrackID, "error": err.Error()})
		}
	}
	return a
}

// GetOrAnalyze returns the cached analysis for track or runs analyzer once,
// sharing the result with concurrent callers for the same track.
func (c *Cache) GetOrAnalyze(ctx context.Context, track *stems.Track, analyzer TrackAnalyzer) (*TrackAnalysis, error) {
	if track == nil {
		return nil, fmt.Errorf("get or analyze: %w", ErrMissingInput)
	}
	if a, ok := c.Get(ctx, track.ID); ok {
		return a, nil
	}

	ch := c.flight.DoChan(track.ID, func() (any, error) {
		if a, ok := c.entries.Peek(track.ID); ok {
			return a, nil
		}
		a, err := analyzer.Analyze(ctx, track)
		if err != nil {
			return nil, err
		}
		return c.Put(ctx, a), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TrackAnalysis), nil
	}
}

// Invalidate drops a track's analysis from memory and the store.
func (c *Cache) Invalidate(ctx context.Context, trackID string) error {
	c.entries.Remove(trackID)
	c.flight.Forget(trackID)
	if c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, trackID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete stored analysis for %s: %w", trackID, err)
	}
	return nil
}

// Len is the number of analyses held in memory.
func (c *Cache) Len() int {
	return c.entries.Len()
}
