// Package runlog keeps an audit trail of pipeline runs in a SQLite database.
// The log is informational only; dataset state is always re-derived by
// probing the filesystem, never read back from here.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Log records run and per-dataset outcomes.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the run log database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	l := &Log{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	force_run    INTEGER NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_datasets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	dataset      TEXT NOT NULL,
	action       TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows_written INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	recorded_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_run_datasets_run_id ON run_datasets(run_id);
CREATE INDEX IF NOT EXISTS idx_run_datasets_dataset ON run_datasets(dataset);
`

func (l *Log) migrate() error {
	_, err := l.db.Exec(migration)
	return eris.Wrap(err, "runlog: migrate")
}

// StartRun records the beginning of a pipeline run and returns its id.
func (l *Log) StartRun(ctx context.Context, force bool) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, force_run) VALUES (?, ?)`, id, force)
	if err != nil {
		return "", eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// RecordOutcome appends one dataset outcome to a run.
func (l *Log) RecordOutcome(ctx context.Context, runID, dataset, action, status string, rows int64, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO run_datasets (run_id, dataset, action, status, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, dataset, action, status, rows, errMsg)
	return eris.Wrapf(err, "runlog: record outcome for %s", dataset)
}

// CompleteRun marks a run as finished.
func (l *Log) CompleteRun(ctx context.Context, runID string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET completed_at = datetime('now') WHERE id = ?`, runID)
	return eris.Wrapf(err, "runlog: complete run %s", runID)
}

// LastSuccess returns when a dataset last ingested successfully, or nil if
// it never has.
func (l *Log) LastSuccess(ctx context.Context, dataset string) (*time.Time, error) {
	var raw string
	err := l.db.QueryRowContext(ctx,
		`SELECT recorded_at FROM run_datasets
		 WHERE dataset = ? AND status = 'succeeded'
		 ORDER BY recorded_at DESC LIMIT 1`,
		dataset,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", dataset)
	}
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: parse timestamp %q", raw)
	}
	return &t, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
