package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/store"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, internalerr.ErrStoreUnavailable)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS rule_sets (
	name TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rules (
	set_name TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY(set_name, position),
	FOREIGN KEY(set_name) REFERENCES rule_sets(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	goal TEXT,
	proved INTEGER NOT NULL DEFAULT 0,
	termination TEXT,
	passes INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_facts (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	attribute TEXT NOT NULL,
	value TEXT NOT NULL,
	provenance TEXT NOT NULL,
	PRIMARY KEY(run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_entries (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	entry_id TEXT NOT NULL,
	rule_index INTEGER NOT NULL,
	rule TEXT NOT NULL,
	fact TEXT NOT NULL,
	at TEXT NOT NULL,
	PRIMARY KEY(run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRules replaces the named rule set in one transaction.
func (s *sqliteStore) SaveRules(ctx context.Context, name string, texts []string) error {
	if name == "" {
		return fmt.Errorf("save rules: empty name: %w", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO rule_sets (name, updated_at) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET updated_at=excluded.updated_at`,
		name, time.Now().UTC().Format(timeLayout)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE set_name=?`, name); err != nil {
		return err
	}

	if len(texts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO rules (set_name, position, text) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, text := range texts {
			if _, err := stmt.ExecContext(ctx, name, i, text); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadRules returns the rule texts of the named set in declaration order.
func (s *sqliteStore) LoadRules(ctx context.Context, name string) ([]string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rule_sets WHERE name=?`, name).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("rule set %q: %w", name, internalerr.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT text FROM rules WHERE set_name=? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	texts := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// ListRuleSets returns rule set names sorted alphabetically.
func (s *sqliteStore) ListRuleSets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rule_sets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RecordRun stores a run together with its facts and log entries.
func (s *sqliteStore) RecordRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("record run: empty id: %w", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var dup int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id=?`, r.ID).Scan(&dup); err != nil {
		return err
	}
	if dup > 0 {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrDuplicate)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, mode, goal, proved, termination, passes, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Goal, boolToInt(r.Proved), r.Termination, r.Passes,
		r.StartedAt.UTC().Format(timeLayout)); err != nil {
		return err
	}

	if err := insertRunFacts(ctx, tx, r.ID, r.Facts); err != nil {
		return err
	}
	if err := insertRunEntries(ctx, tx, r.ID, r.Entries); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRunFacts(ctx context.Context, tx *sql.Tx, runID string, facts []store.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_facts (run_id, position, attribute, value, provenance) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, f := range facts {
		if _, err := stmt.ExecContext(ctx, runID, i, f.Attribute, f.Value, f.Provenance); err != nil {
			return err
		}
	}
	return nil
}

func insertRunEntries(ctx context.Context, tx *sql.Tx, runID string, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_entries (run_id, position, entry_id, rule_index, rule, fact, at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, i, e.ID, e.RuleIndex, e.Rule, e.Fact,
			e.Time.UTC().Format(timeLayout)); err != nil {
			return err
		}
	}
	return nil
}

// GetRun returns a run with its facts and log entries.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, mode, goal, proved, termination, passes, started_at FROM runs WHERE id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	if r.Facts, err = s.runFacts(ctx, id); err != nil {
		return store.Run{}, err
	}
	if r.Entries, err = s.runEntries(ctx, id); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

// ListRuns returns run summaries, newest first.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, mode, goal, proved, termination, passes, started_at
FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var (
		r           store.Run
		goal        sql.NullString
		termination sql.NullString
		proved      int
		startedAt   string
	)
	if err := row.Scan(&r.ID, &r.Mode, &goal, &proved, &termination, &r.Passes, &startedAt); err != nil {
		return store.Run{}, err
	}
	r.Goal = goal.String
	r.Termination = termination.String
	r.Proved = proved != 0
	if t, err := time.Parse(timeLayout, startedAt); err == nil {
		r.StartedAt = t
	}
	return r, nil
}

func (s *sqliteStore) runFacts(ctx context.Context, runID string) ([]store.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT attribute, value, provenance FROM run_facts WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Fact
	for rows.Next() {
		var f store.Fact
		if err := rows.Scan(&f.Attribute, &f.Value, &f.Provenance); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqliteStore) runEntries(ctx context.Context, runID string) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT entry_id, rule_index, rule, fact, at FROM run_entries WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Entry
	for rows.Next() {
		var (
			e  store.Entry
			at string
		)
		if err := rows.Scan(&e.ID, &e.RuleIndex, &e.Rule, &e.Fact, &at); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, at); err == nil {
			e.Time = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
