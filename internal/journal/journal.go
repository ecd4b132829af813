// Package journal provides a SQLite-backed record of what an import run
// created, so re-runs against the same project can skip records that
// already exist instead of duplicating them.
package journal

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	project     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	summary     TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	epic_link   TEXT NOT NULL DEFAULT '',
	native_link INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project, kind, summary)
);

CREATE TABLE IF NOT EXISTS link_outcomes (
	project         TEXT NOT NULL,
	story_key       TEXT NOT NULL,
	epic_key        TEXT NOT NULL,
	success         INTEGER NOT NULL,
	strategy        TEXT NOT NULL DEFAULT '',
	replacement_key TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_project ON records(project);
`

// Record kinds.
const (
	KindEpic  = "epic"
	KindStory = "story"
)

// Journal wraps a sql.DB with run-journal operations.
type Journal struct {
	conn *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(dsn string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &Journal{conn: conn}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

// RecordCreated stores one created record. Re-recording the same
// (project, kind, summary) replaces the earlier row, matching the
// last-write-wins behavior of the in-memory epic key map.
func (j *Journal) RecordCreated(project, kind, summary, key, epicLink string, nativeLink bool) error {
	_, err := j.conn.Exec(`
		INSERT INTO records (project, kind, summary, record_key, epic_link, native_link)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, kind, summary) DO UPDATE SET
			record_key  = excluded.record_key,
			epic_link   = excluded.epic_link,
			native_link = excluded.native_link
	`, project, kind, summary, key, epicLink, boolInt(nativeLink))
	if err != nil {
		return fmt.Errorf("journal: record %s %q: %w", kind, summary, err)
	}
	return nil
}

// Lookup returns the stored key for a record, or found=false.
func (j *Journal) Lookup(project, kind, summary string) (key string, nativeLink bool, found bool, err error) {
	var native int
	row := j.conn.QueryRow(`
		SELECT record_key, native_link FROM records
		WHERE project = ? AND kind = ? AND summary = ?
	`, project, kind, summary)
	if err := row.Scan(&key, &native); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, false, nil
		}
		return "", false, false, fmt.Errorf("journal: lookup %s %q: %w", kind, summary, err)
	}
	return key, native == 1, true, nil
}

// RecordLink stores the outcome of one deferred-linking attempt.
func (j *Journal) RecordLink(project, storyKey, epicKey string, outcome model.LinkOutcome) error {
	_, err := j.conn.Exec(`
		INSERT INTO link_outcomes (project, story_key, epic_key, success, strategy, replacement_key)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project, storyKey, epicKey, boolInt(outcome.Success), outcome.Strategy, outcome.ReplacementKey)
	if err != nil {
		return fmt.Errorf("journal: record link %s -> %s: %w", storyKey, epicKey, err)
	}
	return nil
}

// EpicKeys returns the stored summary -> key map for a project's epics.
func (j *Journal) EpicKeys(project string) (model.EpicKeyMap, error) {
	rows, err := j.conn.Query(`
		SELECT summary, record_key FROM records
		WHERE project = ? AND kind = ?
	`, project, KindEpic)
	if err != nil {
		return nil, fmt.Errorf("journal: epic keys: %w", err)
	}
	defer rows.Close()

	out := make(model.EpicKeyMap)
	for rows.Next() {
		var summary, key string
		if err := rows.Scan(&summary, &key); err != nil {
			return nil, err
		}
		out[summary] = key
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
