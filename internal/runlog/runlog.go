// Package runlog records job runs in a local SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Entry is one recorded job run.
type Entry struct {
	ID          string
	Job         string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Records     int64
	Error       string
}

// Log provides read/write access to the runs table.
type Log struct {
	db *sql.DB
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	job          TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	records      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
`

// Open opens (or creates) the run log at the given path and configures
// WAL mode.
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "runlog: migrate")
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Start records the beginning of a job run and returns its ID.
func (l *Log) Start(ctx context.Context, job string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, job, status, started_at) VALUES (?, ?, 'running', ?)`,
		id, job, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s", job)
	}
	return id, nil
}

// Complete marks a run as successfully completed with a record count.
func (l *Log) Complete(ctx context.Context, id string, records int64) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = 'complete', completed_at = ?, records = ? WHERE id = ?`,
		time.Now().UTC(), records, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete %s", id)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (l *Log) Fail(ctx context.Context, id, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail %s", id)
	}
	return nil
}

// List returns runs ordered most recent first.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, job, status, started_at, completed_at, records, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Job, &e.Status, &e.StartedAt, &e.CompletedAt, &e.Records, &e.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
