// Package store persists readings to a local sqlite database, so a headless
// deployment keeps history across connectivity gaps.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"luxgate/internal/tsl2561"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lux REAL NOT NULL,
	broadband INTEGER NOT NULL,
	infrared INTEGER NOT NULL,
	degraded INTEGER NOT NULL DEFAULT 0,
	taken_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_taken_at ON readings(taken_at);
`

// Store is a readings log backed by sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open readings db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create readings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends one reading.
func (s *Store) Save(ctx context.Context, r tsl2561.Reading) error {
	const q = `INSERT INTO readings (lux, broadband, infrared, degraded, taken_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, r.Lux, r.Ch0, r.Ch1, r.Degraded, r.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Latest returns the most recent reading, or sql.ErrNoRows if the log is
// empty.
func (s *Store) Latest(ctx context.Context) (tsl2561.Reading, error) {
	const q = `SELECT lux, broadband, infrared, degraded, taken_at FROM readings ORDER BY id DESC LIMIT 1`

	var r tsl2561.Reading
	var takenAt string
	err := s.db.QueryRowContext(ctx, q).Scan(&r.Lux, &r.Ch0, &r.Ch1, &r.Degraded, &takenAt)
	if err != nil {
		return tsl2561.Reading{}, err
	}
	r.Timestamp, err = time.Parse(time.RFC3339Nano, takenAt)
	if err != nil {
		return tsl2561.Reading{}, fmt.Errorf("parse taken_at: %w", err)
	}
	return r, nil
}

// CountSince reports how many readings were taken at or after t.
func (s *Store) CountSince(ctx context.Context, t time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM readings WHERE taken_at >= ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, t.UTC().Format(time.RFC3339Nano)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
