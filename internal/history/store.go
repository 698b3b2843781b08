// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps an append-only SQLite ledger of sync runs and their
// per-entry outcomes. The ledger is written after a run and is never read
// back by lookups.
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

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bibsync/pkg/types"
)

// DefaultLimit is the number of runs Recent returns when limit <= 0.
const DefaultLimit = 20

// ErrRunNotFound is returned by Entries for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID        string
	Source    string
	Input     string
	StartedAt time.Time
	Duration  time.Duration
	Summary   types.Summary
}

// EntryRecord is one row of the run_entries table.
type EntryRecord struct {
	Key     string
	Outcome string
	Failure string
	Changed []string
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path and creates the schema
// if it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			input TEXT,
			started_at TEXT NOT NULL,
			duration_ms INTEGER,
			matched INTEGER,
			updated INTEGER,
			unmatched INTEGER,
			failed INTEGER,
			not_attempted INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS run_entries (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			outcome TEXT NOT NULL,
			failure TEXT,
			changed TEXT,
			PRIMARY KEY (run_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores run and its per-entry results in one transaction and returns
// the run id. A new id is generated when run.ID is empty. The summary is
// always derived from results.
func (s *Store) Record(ctx context.Context, run Run, results types.SyncResults) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Summary = results.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, input, started_at, duration_ms, matched, updated, unmatched, failed, not_attempted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Input, run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(), run.Summary.Matched, run.Summary.Updated,
		run.Summary.Unmatched, run.Summary.Failed, run.Summary.NotAttempted,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_entries (run_id, key, outcome, failure, changed) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range results.Keys() {
		res := results[key]
		changedJSON, _ := json.Marshal(res.Changed)
		_, err := stmt.ExecContext(ctx,
			run.ID, key, res.Outcome.Kind.String(), res.Outcome.Failure.String(), string(changedJSON))
		if err != nil {
			return "", fmt.Errorf("inserting entry %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, input, started_at, duration_ms, matched, updated, unmatched, failed, not_attempted
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			input     sql.NullString
			startedAt string
			durMS     int64
		)
		if err := rows.Scan(&r.ID, &r.Source, &input, &startedAt, &durMS,
			&r.Summary.Matched, &r.Summary.Updated, &r.Summary.Unmatched,
			&r.Summary.Failed, &r.Summary.NotAttempted); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Input = input.String
		started, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: parsing started_at: %w", r.ID, err)
		}
		r.StartedAt = started
		r.Duration = time.Duration(durMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the per-entry rows of a run, sorted by key.
func (s *Store) Entries(ctx context.Context, runID string) ([]EntryRecord, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, outcome, failure, changed FROM run_entries WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRecord
	for rows.Next() {
		var (
			e       EntryRecord
			failure sql.NullString
			changed sql.NullString
		)
		if err := rows.Scan(&e.Key, &e.Outcome, &failure, &changed); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Failure = failure.String
		if changed.Valid && changed.String != "" {
			if err := json.Unmarshal([]byte(changed.String), &e.Changed); err != nil {
				return nil, fmt.Errorf("entry %s: decoding changed fields: %w", e.Key, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
