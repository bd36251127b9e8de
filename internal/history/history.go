// Package history persists build records in a local SQLite database so past
// runs can be listed and watch mode knows the last built commit.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Build result values stored in the status column.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusWarning = "warning" // succeeded but with advisory findings
)

// Record describes one completed build run.
type Record struct {
	ID           int64
	BuildID      string
	SourceCommit string
	Branch       string
	Image        string
	Status       string
	Warnings     int
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens (or creates) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		source_commit TEXT NOT NULL,
		branch TEXT NOT NULL,
		image TEXT NOT NULL,
		status TEXT NOT NULL,
		warnings INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);
	CREATE INDEX IF NOT EXISTS idx_builds_commit ON builds(source_commit);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores one build record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (build_id, source_commit, branch, image, status, warnings, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.BuildID, rec.SourceCommit, rec.Branch, rec.Image, rec.Status, rec.Warnings,
		rec.Duration.Milliseconds(), createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, source_commit, branch, image, status, warnings, duration_ms, created_at FROM builds ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query build records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS, createdAt int64
		if err := rows.Scan(&rec.ID, &rec.BuildID, &rec.SourceCommit, &rec.Branch, &rec.Image,
			&rec.Status, &rec.Warnings, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastSuccessCommit returns the source commit of the most recent successful
// build, or "" if none exists yet.
func (s *Store) LastSuccessCommit(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var commit string
	err := s.db.QueryRowContext(ctx,
		"SELECT source_commit FROM builds WHERE status != ? ORDER BY id DESC LIMIT 1",
		StatusFailure,
	).Scan(&commit)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last success: %w", err)
	}
	return commit, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
