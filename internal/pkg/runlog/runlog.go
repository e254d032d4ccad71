// Package runlog keeps a SQLite ledger of audit outcomes across batches.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"

	"perfsummary/internal/pkg/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	state       TEXT    NOT NULL,
	attempts    INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_outcomes_run ON audit_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_audit_outcomes_name ON audit_outcomes(name, finished_at);
`

// One stored outcome.
type Entry struct {
	RunID      string
	Name       string
	URL        string
	State      string
	Attempts   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Ledger struct {
	db *sql.DB
}

// Opens or creates the ledger at path. ":memory:" gives a private in-memory
// ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize ledger schema")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Implements audit.Recorder. Outcomes still in flight are refused.
func (l *Ledger) Record(ctx context.Context, runID string, outcome audit.Outcome) error {
	if !outcome.State.Terminal() {
		return errors.Errorf("outcome for %s is still %s", outcome.Target.Name, outcome.State)
	}
	errText := ""
	if outcome.Err != nil {
		errText = outcome.Err.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_outcomes (run_id, name, url, state, attempts, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Target.Name,
		outcome.Target.URL,
		outcome.State.String(),
		outcome.Attempts,
		errText,
		outcome.StartedAt.UTC().Format(time.RFC3339Nano),
		outcome.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errors.Wrapf(err, "record outcome for %s", outcome.Target.Name)
	}
	return nil
}

// Returns the outcomes of one batch in the order they were recorded.
func (l *Ledger) Run(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, name, url, state, attempts, error, started_at, finished_at
		 FROM audit_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query run")
	}
	return scanEntries(rows)
}

// Returns the most recent outcome per target name, ordered by name.
func (l *Ledger) Latest(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, name, url, state, attempts, error, started_at, finished_at
		 FROM audit_outcomes
		 WHERE id IN (SELECT MAX(id) FROM audit_outcomes GROUP BY name)
		 ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "query latest outcomes")
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry               Entry
			startedAt, finished string
		)
		if err := rows.Scan(&entry.RunID, &entry.Name, &entry.URL, &entry.State,
			&entry.Attempts, &entry.Error, &startedAt, &finished); err != nil {
			return nil, errors.Wrap(err, "scan outcome")
		}
		var err error
		if entry.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, errors.Wrap(err, "parse started_at")
		}
		if entry.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, errors.Wrap(err, "parse finished_at")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate outcomes")
	}
	return entries, nil
}
