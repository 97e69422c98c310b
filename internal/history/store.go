// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists evaluation runs in a local SQLite database so
// results remain queryable across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "grader.db"
)

// Store manages the run-history SQLite database.
type Store struct {
	db         *sql.DB
	historyDir string
	maxResults int
}

// Run describes one recorded evaluation run.
type Run struct {
	ID         int64     `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	Model      string    `json:"model" yaml:"model"`
	Attempted  int       `json:"attempted" yaml:"attempted"`
	Succeeded  int       `json:"succeeded" yaml:"succeeded"`
	Failed     int       `json:"failed" yaml:"failed"`
	AvgContent float64   `json:"avg_content" yaml:"avg_content"`
	AvgFormat  float64   `json:"avg_format" yaml:"avg_format"`
}

// NewStore opens or creates the history database at
// historyDir/index/grader.db, creating the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.HistoryDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		historyDir: cfg.HistoryDir,
		maxResults: maxResults,
	}

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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			model TEXT NOT NULL,
			attempted INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			avg_content REAL,
			avg_format REAL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			request TEXT NOT NULL,
			reply TEXT NOT NULL,
			content_score INTEGER NOT NULL,
			content_explanation TEXT,
			format_score INTEGER NOT NULL,
			format_explanation TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores one evaluation run and its results in a single
// transaction, returning the new run's ID.
func (s *Store) RecordRun(ctx context.Context, run Run, results []types.EvaluatedTicket) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, model, attempted, succeeded, failed, avg_content, avg_format)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339Nano), run.Model,
		run.Attempted, run.Succeeded, run.Failed, run.AvgContent, run.AvgFormat,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, position, request, reply, content_score, content_explanation, format_score, format_explanation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range results {
		_, err := stmt.ExecContext(ctx,
			runID, i, t.Request, t.Reply,
			t.ContentScore, t.ContentExplanation,
			t.FormatScore, t.FormatExplanation,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first, capped at the
// store's configured maximum.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, model, attempted, succeeded, failed, avg_content, avg_format
		 FROM runs ORDER BY id DESC LIMIT ?`, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, model, attempted, succeeded, failed, avg_content, avg_format
		 FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// Results returns a run's evaluated tickets in their original input
// order.
func (s *Store) Results(ctx context.Context, runID int64) ([]types.EvaluatedTicket, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request, reply, content_score, content_explanation, format_score, format_explanation
		 FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var results []types.EvaluatedTicket
	for rows.Next() {
		var t types.EvaluatedTicket
		if err := rows.Scan(&t.Request, &t.Reply,
			&t.ContentScore, &t.ContentExplanation,
			&t.FormatScore, &t.FormatExplanation); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (Run, error) {
	var run Run
	var startedAt string
	if err := row.Scan(&run.ID, &startedAt, &run.Model,
		&run.Attempted, &run.Succeeded, &run.Failed,
		&run.AvgContent, &run.AvgFormat); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parsing run timestamp %q: %w", startedAt, err)
	}
	run.StartedAt = parsed
	return run, nil
}
