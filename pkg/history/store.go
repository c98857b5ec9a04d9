// Package history keeps a sqlite record of finished backup runs.
package history

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

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// timeLayout has a fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded backup
type Run struct {
	ID          int64            `json:"id"`
	SessionID   string           `json:"session_id"`
	Sources     []string         `json:"sources"`
	Target      string           `json:"target"`
	Copied      int              `json:"copied"`
	Skipped     int              `json:"skipped"`
	Errors      int              `json:"errors"`
	BytesCopied int64            `json:"bytes_copied"`
	Cancelled   bool             `json:"cancelled"`
	Status      models.RunStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Duration    time.Duration    `json:"duration"`
}

// Store wraps the history database
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a finished run
func (s *Store) Record(ctx context.Context, sources []string, target string, stats *models.BackupStats) error {
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (session_id, sources, target, copied, skipped, errors, bytes_copied, cancelled, status, started_at, finished_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		stats.SessionID, string(encoded), target,
		stats.Copied, stats.Skipped, stats.Errors, stats.BytesCopied, stats.Cancelled, string(stats.Status()),
		stats.StartTime.UTC().Format(timeLayout), stats.EndTime.UTC().Format(timeLayout),
		stats.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to n runs, newest first
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, sources, target, copied, skipped, errors, bytes_copied, cancelled, status, started_at, finished_at, duration_ms
FROM runs
ORDER BY started_at DESC, id DESC
LIMIT ?
`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Last returns the newest run, or nil when nothing was recorded yet
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r                 Run
		sources, status   string
		started, finished string
		durationMs        int64
		cancelled         bool
	)
	if err := rows.Scan(
		&r.ID, &r.SessionID, &sources, &r.Target, &r.Copied, &r.Skipped, &r.Errors, &r.BytesCopied,
		&cancelled, &status, &started, &finished, &durationMs,
	); err != nil {
		return r, fmt.Errorf("failed to scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return r, fmt.Errorf("failed to decode sources: %w", err)
	}
	r.Cancelled = cancelled
	r.Status = models.RunStatus(status)
	r.Duration = time.Duration(durationMs) * time.Millisecond

	var err error
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("failed to parse start time: %w", err)
	}
	if r.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return r, fmt.Errorf("failed to parse finish time: %w", err)
	}
	return r, nil
}

// ErrNotFound is returned by Get for an unknown session id
var ErrNotFound = errors.New("run not found")

// Get returns the run recorded for sessionID
func (s *Store) Get(ctx context.Context, sessionID string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, sources, target, copied, skipped, errors, bytes_copied, cancelled, status, started_at, finished_at, duration_ms
FROM runs
WHERE session_id = ?
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
