package history

import (
	"context"
	"database/sql"
	"fmt"
)

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	sources TEXT NOT NULL DEFAULT '',
	target TEXT NOT NULL DEFAULT '',

	copied INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	bytes_copied INTEGER NOT NULL DEFAULT 0,
	cancelled INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,

	started_at TEXT NOT NULL, -- UTC, fixed-width nanoseconds
	finished_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,

	UNIQUE(session_id)
);
`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
	}

	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to initialize history schema: %w", err)
		}
	}
	return nil
}
