// Package storage persists session analyses in an embedded SQLite
// database so a session survives process restarts: the analysis result
// and the raw segments are stored, and the vector index is rebuilt from
// the segments on recovery.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brightfield-ai/scout/internal/model"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("storage: not found")

// SessionRecord is the persisted form of one session.
type SessionRecord struct {
	ID          string
	CompanyInfo string
	Analysis    model.AnalysisResult
	Segments    []model.Segment
	Raw         string
	CreatedAt   time.Time
}

// DB wraps the embedded SQLite database.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path and applies the
// schema. ":memory:" gives a process-local database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	// modernc sqlite serializes access per connection; a single connection
	// avoids table-lock contention between writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	s := &DB{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	company_info  TEXT NOT NULL DEFAULT '',
	analysis_json TEXT NOT NULL,
	segments_json TEXT NOT NULL,
	raw_output    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: apply schema: %w", err)
	}
	return nil
}

// SaveSession writes a session row atomically, replacing any previous row
// with the same ID. Either the full row is written or nothing is.
func (s *DB) SaveSession(ctx context.Context, rec SessionRecord) error {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("storage: marshal analysis: %w", err)
	}
	segmentsJSON, err := json.Marshal(rec.Segments)
	if err != nil {
		return fmt.Errorf("storage: marshal segments: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, company_info, analysis_json, segments_json, raw_output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   company_info = excluded.company_info,
		   analysis_json = excluded.analysis_json,
		   segments_json = excluded.segments_json,
		   raw_output = excluded.raw_output,
		   created_at = excluded.created_at`,
		rec.ID, rec.CompanyInfo, string(analysisJSON), string(segmentsJSON), rec.Raw, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: save session %q: %w", rec.ID, err)
	}
	return nil
}

// LoadSession reads a session row. Returns ErrNotFound when absent.
func (s *DB) LoadSession(ctx context.Context, id string) (SessionRecord, error) {
	var (
		rec           SessionRecord
		analysisJSON  string
		segmentsJSON  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_info, analysis_json, segments_json, raw_output, created_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.CompanyInfo, &analysisJSON, &segmentsJSON, &rec.Raw, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("storage: load session %q: %w", id, err)
	}

	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return SessionRecord{}, fmt.Errorf("storage: unmarshal analysis for %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(segmentsJSON), &rec.Segments); err != nil {
		return SessionRecord{}, fmt.Errorf("storage: unmarshal segments for %q: %w", id, err)
	}
	return rec, nil
}

// DeleteExpired removes sessions older than the cutoff. Returns the number
// of rows deleted.
func (s *DB) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("storage: expired sessions removed", "count", n)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the database.
func (s *DB) Close() error {
	return s.db.Close()
}
