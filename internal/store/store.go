// Package store persists scouting run logs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("store: run not found")

// Status is the outcome of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RunLog records one pipeline run. Payload holds the full JSON report and
// is only populated by Get.
type RunLog struct {
	ID         string          `json:"id"`
	Repo       string          `json:"repo"`
	Selected   int             `json:"selected_issue_number"`
	BestScore  int             `json:"best_score"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Duration is the wall time of the run.
func (r RunLog) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store is a run log backed by SQLite. Writes go through a single
// connection; reads use a separate read-only handle.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// Open creates the database and its parent directory if needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store.Open: creating dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store.Open: opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := &Store{writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	// The read-only handle needs the file to exist, so it is opened after
	// the schema has been created.
	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("store.Open: opening read db: %w", err)
	}
	s.readDB = readDB
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			repo        TEXT NOT NULL,
			selected    INTEGER NOT NULL DEFAULT 0,
			best_score  INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			started_at  DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			payload     TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_repo ON runs(repo);
	`)
	if err != nil {
		return fmt.Errorf("store: initializing schema: %w", err)
	}
	return nil
}

// Close releases both database handles.
func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

// Save inserts or replaces a run.
func (s *Store) Save(ctx context.Context, r RunLog) error {
	if r.ID == "" {
		return fmt.Errorf("store.Save: run ID required")
	}
	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	_, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO runs (id, repo, selected, best_score, status, error, started_at, finished_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			selected = excluded.selected,
			best_score = excluded.best_score,
			status = excluded.status,
			error = excluded.error,
			finished_at = excluded.finished_at,
			payload = excluded.payload
	`, r.ID, r.Repo, r.Selected, r.BestScore, string(r.Status), r.Error,
		r.StartedAt.UTC(), r.FinishedAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("store.Save %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, without payloads. repo
// filters by repository when non-empty.
func (s *Store) Recent(ctx context.Context, repo string, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, repo, selected, best_score, status, error, started_at, finished_at FROM runs`
	var args []any
	if repo != "" {
		query += ` WHERE repo = ?`
		args = append(args, repo)
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store.Recent: %w", err)
	}
	defer rows.Close()

	runs := []RunLog{}
	for rows.Next() {
		var r RunLog
		var status string
		if err := rows.Scan(&r.ID, &r.Repo, &r.Selected, &r.BestScore, &status, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("store.Recent: %w", err)
		}
		r.Status = Status(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns one run including its payload.
func (s *Store) Get(ctx context.Context, id string) (*RunLog, error) {
	var r RunLog
	var status, payload string
	err := s.readDB.QueryRowContext(ctx, `
		SELECT id, repo, selected, best_score, status, error, started_at, finished_at, payload
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Repo, &r.Selected, &r.BestScore, &status, &r.Error, &r.StartedAt, &r.FinishedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}
	r.Status = Status(status)
	r.Payload = json.RawMessage(payload)
	return &r, nil
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.writeDB.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("store.Prune: %w", err)
	}
	return res.RowsAffected()
}
