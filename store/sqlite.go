// Package store persists track analyses in SQLite so they survive restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-mix/analysis"
	"github.com/RyanBlaney/sonido-mix/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS track_analysis (
	track_id TEXT PRIMARY KEY,
	analysis TEXT NOT NULL,
	bpm REAL,
	camelot TEXT,
	analyzed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_track_analysis_analyzed_at ON track_analysis(analyzed_at);
`

// SQLiteStore implements analysis.Store. The first analysis saved for a
// track is kept until it is deleted.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.WithFields(logging.Fields{"component": "analysis_store", "path": path}),
	}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns analysis.ErrNotFound when the track has no row.
func (s *SQLiteStore) Load(ctx context.Context, trackID string) (*analysis.TrackAnalysis, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT analysis FROM track_analysis WHERE track_id = ?`, trackID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", trackID, err)
	}

	var a analysis.TrackAnalysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", trackID, err)
	}
	return &a, nil
}

// Save inserts the analysis unless the track already has one.
func (s *SQLiteStore) Save(ctx context.Context, a *analysis.TrackAnalysis) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.TrackID, err)
	}
	analyzedAt := a.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO track_analysis (track_id, analysis, bpm, camelot, analyzed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.TrackID, string(raw), a.BPM(), a.Key.Camelot, analyzedAt.Unix())
	if err != nil {
		return fmt.Errorf("save %s: %w", a.TrackID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("analysis already stored", logging.Fields{"track_id": a.TrackID})
	}
	return nil
}

// Delete removes a track's analysis. Deleting an absent track returns
// analysis.ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, trackID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM track_analysis WHERE track_id = ?`, trackID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", trackID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return analysis.ErrNotFound
	}
	return nil
}

// Count returns the number of stored analyses.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM track_analysis`).Scan(&n)
	return n, err
}
