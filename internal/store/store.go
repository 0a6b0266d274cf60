// Package store persists benchmark runs, trials, trial events, and trial
// scores in SQLite. Every logical write happens inside one transaction;
// concurrent first-writers on the same run id are reconciled through the
// primary-key constraint rather than locks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.configurePragmas(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and operational tooling.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, q := range pragmas {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS benchmark_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','running','completed','failed')),
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		artifact_path TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS trials (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES benchmark_runs(id),
		skill_id TEXT,
		evaluation_mode TEXT NOT NULL CHECK (evaluation_mode IN ('baseline','oracle_skill','library_selection')),
		agent TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending','running','completed','failed')),
		artifact_path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_trials_run ON trials(run_id);
	CREATE TABLE IF NOT EXISTS trial_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trial_id TEXT NOT NULL REFERENCES trials(id),
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_trial_events_trial ON trial_events(trial_id);
	CREATE TABLE IF NOT EXISTS trial_scores (
		trial_id TEXT PRIMARY KEY REFERENCES trials(id),
		overall_score REAL NOT NULL,
		success_rate REAL NOT NULL,
		deterministic_score REAL NOT NULL,
		safety_score REAL NOT NULL,
		efficiency_score REAL NOT NULL,
		forbidden_commands TEXT NOT NULL DEFAULT '[]'
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withTx runs fn inside one transaction, rolling back on any error so no
// partial rows survive a failed write.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isUniqueConflict reports whether err is a SQLite uniqueness violation, the
// signal that a concurrent writer created the same row first. Other
// constraint classes (CHECK, NOT NULL, foreign key) are genuine write errors
// and must not trigger the re-read path.
func isUniqueConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
