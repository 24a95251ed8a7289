package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite run-history store.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path (":memory:" for ephemeral history)
// and applies any pending migrations.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping state database: %w", err)
	}

	s.db = db
	s.path = path

	if err := s.migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StartRun inserts a new run in the running state.
func (s *SQLiteStore) StartRun(phase string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	run := &Run{
		ID:        uuid.New().String(),
		Phase:     phase,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, phase, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Phase, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	s.logger.Debug("run started", "run_id", run.ID, "phase", phase)
	return run, nil
}

// CompleteRun finalizes a run.
func (s *SQLiteStore) CompleteRun(id string, status Status, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("state database not opened")
	}
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	return nil
}

// RecordUnits appends unit outcomes to a run in one transaction.
func (s *SQLiteStore) RecordUnits(runID string, units []Unit) error {
	if s.db == nil {
		return fmt.Errorf("state database not opened")
	}
	if len(units) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin unit insert: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO run_units (run_id, stage, name, status, reason, rows_affected, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare unit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, u := range units {
		if _, err := stmt.Exec(runID, u.Stage, u.Name, string(u.Status), u.Reason, u.Rows, u.Duration.Milliseconds()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert unit %s/%s: %w", u.Stage, u.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unit insert: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, phase, status, error, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		var r Run
		var status string
		var completed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Phase, &status, &r.Error, &r.StartedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Status = Status(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// UnitsForRun returns a run's units in insertion order.
func (s *SQLiteStore) UnitsForRun(runID string) ([]Unit, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state database not opened")
	}
	rows, err := s.db.Query(`
		SELECT id, run_id, stage, name, status, reason, rows_affected, duration_ms
		FROM run_units WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query units for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var units []Unit
	for rows.Next() {
		var u Unit
		var status string
		var durationMS int64
		if err := rows.Scan(&u.ID, &u.RunID, &u.Stage, &u.Name, &status, &u.Reason, &u.Rows, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		u.Status = Status(status)
		u.Duration = time.Duration(durationMS) * time.Millisecond
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}
	return units, nil
}

var _ Store = (*SQLiteStore)(nil)
