package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/persona/internal/model"
	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Batch workers write concurrently; one writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		citations INTEGER NOT NULL DEFAULT 0,
		grounding INTEGER NOT NULL DEFAULT 0,
		outcome_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_username ON runs(username, created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a completed run. Saving the same run id again replaces it.
func (s *SQLiteStore) SaveRun(ctx context.Context, outcome *model.Outcome) error {
	if outcome == nil || outcome.RunID == "" {
		return fmt.Errorf("save run: missing run id")
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	degraded := false
	citations := 0
	if outcome.Persona != nil {
		degraded = outcome.Persona.Degraded
	}
	if outcome.Diagnostics != nil {
		citations = outcome.Diagnostics.ResolvedCites
	}
	grounding := 0
	if outcome.Grounding != nil {
		grounding = outcome.Grounding.Index
	}

	query := `
	INSERT INTO runs (run_id, username, provider, model, degraded, citations, grounding, outcome_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		username = excluded.username,
		provider = excluded.provider,
		model = excluded.model,
		degraded = excluded.degraded,
		citations = excluded.citations,
		grounding = excluded.grounding,
		outcome_json = excluded.outcome_json`

	_, err = s.db.ExecContext(ctx, query,
		outcome.RunID, strings.ToLower(outcome.Username), outcome.Provider, outcome.Model,
		boolToInt(degraded), citations, grounding, string(data), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, username string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, username, provider, model, degraded, citations, grounding, created_at
		FROM runs`
	args := []any{}
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, strings.ToLower(username))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		var degraded int
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.Username, &run.Provider, &run.Model, &degraded, &run.Citations, &run.Grounding, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.Degraded = degraded != 0
		run.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its outcome.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT run_id, username, provider, model, degraded, citations, grounding, outcome_json, created_at
		FROM runs WHERE run_id = ?`

	var run Run
	var degraded int
	var createdAt int64
	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Username, &run.Provider, &run.Model, &degraded, &run.Citations, &run.Grounding, &data, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}

	var outcome model.Outcome
	if err := json.Unmarshal([]byte(data), &outcome); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	run.Degraded = degraded != 0
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.Outcome = &outcome
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
