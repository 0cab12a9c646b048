// Package store persists generation history to a local SQLite database:
// one row per run, one row per diagnostic round. The history subcommand
// reads it back for display.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Run is one recorded generation run.
type Run struct {
	ID            int64
	StartedAt     time.Time
	CompletedAt   time.Time
	Task          string
	Provider      string
	Template      string
	Domain        string
	OutPath       string
	FinalProvider string
	State         string
	Stub          bool
	Passed        bool
	Refinements   int
}

// Attempt is one diagnostic round inside a run.
type Attempt struct {
	ID          int64
	RunID       int64
	Round       int
	Passed      bool
	Diagnostics string
	CreatedAt   time.Time
}

// HistoryStore records runs and attempts in SQLite.
type HistoryStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewHistoryStore opens (or creates) the database at path and ensures the
// schema exists.
func NewHistoryStore(path string, logger *zap.Logger) (*HistoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}

	s := &HistoryStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		task TEXT NOT NULL,
		provider TEXT NOT NULL,
		template TEXT,
		domain TEXT,
		out_path TEXT,
		final_provider TEXT,
		state TEXT,
		stub INTEGER NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		refinements INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		round INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		diagnostics TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// StartRun records the beginning of a generation run and returns its id.
func (s *HistoryStore) StartRun(task, provider, template, domain, outPath string) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO runs (task, provider, template, domain, out_path) VALUES (?, ?, ?, ?, ?)`,
		task, provider, template, domain, outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	s.logger.Debug("run started", zap.Int64("run_id", id), zap.String("provider", provider))
	return id, nil
}

// RecordAttempt records one diagnostic round for a run.
func (s *HistoryStore) RecordAttempt(runID int64, round int, passed bool, diagnostics string) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (run_id, round, passed, diagnostics) VALUES (?, ?, ?, ?)`,
		runID, round, boolToInt(passed), diagnostics)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// CompleteRun records the final outcome of a run.
func (s *HistoryStore) CompleteRun(runID int64, finalProvider, state string, stub, passed bool, refinements int) error {
	_, err := s.db.Exec(
		`UPDATE runs SET completed_at = CURRENT_TIMESTAMP, final_provider = ?, state = ?,
		 stub = ?, passed = ?, refinements = ? WHERE id = ?`,
		finalProvider, state, boolToInt(stub), boolToInt(passed), refinements, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	s.logger.Debug("run completed",
		zap.Int64("run_id", runID),
		zap.String("state", state),
		zap.Bool("passed", passed))
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *HistoryStore) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, COALESCE(completed_at, started_at), task, provider,
		        COALESCE(template, ''), COALESCE(domain, ''), COALESCE(out_path, ''),
		        COALESCE(final_provider, ''), COALESCE(state, ''), stub, passed, refinements
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var stub, passed int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.CompletedAt, &r.Task, &r.Provider,
			&r.Template, &r.Domain, &r.OutPath, &r.FinalProvider, &r.State,
			&stub, &passed, &r.Refinements); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Stub = stub != 0
		r.Passed = passed != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Attempts returns the diagnostic rounds for a run, oldest first.
func (s *HistoryStore) Attempts(runID int64) ([]Attempt, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, round, passed, COALESCE(diagnostics, ''), created_at
		 FROM attempts WHERE run_id = ? ORDER BY round ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var passed int
		if err := rows.Scan(&a.ID, &a.RunID, &a.Round, &passed, &a.Diagnostics, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Passed = passed != 0
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
