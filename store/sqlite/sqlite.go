/*
Package sqlite provides a SQLite-backed history of reconciliation passes.

PURPOSE:
  The spreadsheet is the only source of truth for "already sent". This
  store is an audit trail next to it: one row per pass and one row per
  due record attempted in that pass, so an operator can see what went
  out, what failed, and which rows may have been sent twice after a
  failed write-back.

  Nothing in the reconciliation path reads this store back.

KEY TABLES:
  reconciliation_runs: One row per pass (running, completed, failed, rejected)
  deliveries:          Per-record outcome of a pass

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Passes are serialized upstream, but
  the HTTP history endpoints read concurrently.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so history reads do not
  block the pass that is writing its outcome.

USAGE:
  store, err := sqlite.New("./reminders.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - api/handlers.go: Records runs around every pass
  - reminder/engine.go: Produces the outcomes stored here
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// timeLayout is fixed-width so that text order in SQLite is time order.
// Timestamps are always stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists reconciliation history in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reconciliation Runs (one per pass)
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		reference_date TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		due_count INTEGER DEFAULT 0,
		sent_count INTEGER DEFAULT 0,
		failed_count INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_status
		ON reconciliation_runs(status);
	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_created
		ON reconciliation_runs(created_at DESC);

	-- Deliveries (per due record of a pass)
	CREATE TABLE IF NOT EXISTS deliveries (
		run_id TEXT NOT NULL REFERENCES reconciliation_runs(id) ON DELETE CASCADE,
		row_number INTEGER NOT NULL,
		name TEXT,
		outcome TEXT NOT NULL,
		errors_json TEXT,
		PRIMARY KEY (run_id, row_number)
	);

	-- For "which rows failed to be marked" audits
	CREATE INDEX IF NOT EXISTS idx_deliveries_outcome
		ON deliveries(outcome);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// ReconciliationRun is one pass.
type ReconciliationRun struct {
	ID            string
	ReferenceDate string // YYYY-MM-DD
	Mode          string
	Status        string // running, completed, failed, rejected
	DueCount      int
	SentCount     int
	FailedCount   int
	Error         string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// Delivery is the outcome of one due record in a pass.
type Delivery struct {
	RunID     string
	RowNumber int
	Name      string
	Outcome   string
	Errors    []string
}

// SaveReconciliationRun inserts or updates a run.
func (s *Store) SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reconciliation_runs (id, reference_date, mode, status,
			due_count, sent_count, failed_count, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			due_count = excluded.due_count,
			sent_count = excluded.sent_count,
			failed_count = excluded.failed_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ReferenceDate, r.Mode, r.Status,
		r.DueCount, r.SentCount, r.FailedCount, nullString(r.Error),
		formatTime(r.StartedAt), formatTime(r.CompletedAt), formatStamp(r.CreatedAt),
	)
	return err
}

// SaveDeliveries replaces the deliveries of a run atomically.
func (s *Store) SaveDeliveries(ctx context.Context, runID string, deliveries []Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE run_id = ?`, runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deliveries (run_id, row_number, name, outcome, errors_json)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range deliveries {
		var errorsJSON sql.NullString
		if len(d.Errors) > 0 {
			b, err := json.Marshal(d.Errors)
			if err != nil {
				return err
			}
			errorsJSON = nullString(string(b))
		}
		if _, err := stmt.ExecContext(ctx, runID, d.RowNumber, d.Name, d.Outcome, errorsJSON); err != nil {
			return fmt.Errorf("insert delivery for row %d: %w", d.RowNumber, err)
		}
	}

	return tx.Commit()
}

// GetReconciliationRuns returns runs, newest first, optionally by status.
func (s *Store) GetReconciliationRuns(ctx context.Context, status string) ([]ReconciliationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, reference_date, mode, status, due_count, sent_count, failed_count,
			error, started_at, completed_at, created_at
		FROM reconciliation_runs
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetReconciliationRun returns one run with its deliveries, or nil if absent.
func (s *Store) GetReconciliationRun(ctx context.Context, id string) (*ReconciliationRun, []Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference_date, mode, status, due_count, sent_count, failed_count,
			error, started_at, completed_at, created_at
		FROM reconciliation_runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, nil, err
	}
	if !rows.Next() {
		rows.Close()
		return nil, nil, rows.Err()
	}
	run, err := scanRun(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	drows, err := s.db.QueryContext(ctx, `
		SELECT run_id, row_number, name, outcome, errors_json
		FROM deliveries WHERE run_id = ? ORDER BY row_number
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer drows.Close()

	var deliveries []Delivery
	for drows.Next() {
		var d Delivery
		var name, errorsJSON sql.NullString
		if err := drows.Scan(&d.RunID, &d.RowNumber, &name, &d.Outcome, &errorsJSON); err != nil {
			return nil, nil, err
		}
		d.Name = name.String
		if errorsJSON.Valid {
			if err := json.Unmarshal([]byte(errorsJSON.String), &d.Errors); err != nil {
				return nil, nil, fmt.Errorf("decode errors of row %d: %w", d.RowNumber, err)
			}
		}
		deliveries = append(deliveries, d)
	}
	return &run, deliveries, drows.Err()
}

func scanRun(rows *sql.Rows) (ReconciliationRun, error) {
	var r ReconciliationRun
	var errText, startedAt, completedAt, createdAt sql.NullString
	if err := rows.Scan(
		&r.ID, &r.ReferenceDate, &r.Mode, &r.Status,
		&r.DueCount, &r.SentCount, &r.FailedCount,
		&errText, &startedAt, &completedAt, &createdAt,
	); err != nil {
		return r, err
	}

	r.Error = errText.String
	r.CreatedAt, _ = parseStamp(createdAt.String)
	r.StartedAt = parseTime(startedAt)
	r.CompletedAt = parseTime(completedAt)
	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(formatStamp(*t))
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseStamp(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseStamp(s.String)
	if err != nil {
		return nil
	}
	return &t
}
