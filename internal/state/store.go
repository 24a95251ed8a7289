// Package state records pipeline run history in a local SQLite database:
// one row per run, one row per unit of work (a period fetch, a filter
// stage, an aggregate query) with its outcome. The per-unit rows replace
// scattered catch-log-continue handling with an explicit run report.
package state

import "time"

// Status is the outcome of a run or a unit of work within a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Run is one invocation of a pipeline phase.
type Run struct {
	ID          string
	Phase       string
	Status      Status
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Unit is one unit of work inside a run: a period, a table, or a stage
// applied to a table. Skipped units carry the reason they were skipped.
type Unit struct {
	ID       int64
	RunID    string
	Stage    string
	Name     string
	Status   Status
	Reason   string
	Rows     int64
	Duration time.Duration
}

// Store persists runs and their units.
type Store interface {
	// Open opens or creates the store at path and applies migrations.
	Open(path string) error

	// Close closes the store.
	Close() error

	// StartRun records the beginning of a phase and returns the run.
	StartRun(phase string) (*Run, error)

	// CompleteRun finalizes a run with its status and optional error text.
	CompleteRun(id string, status Status, errMsg string) error

	// RecordUnits appends unit outcomes to a run.
	RecordUnits(runID string, units []Unit) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// UnitsForRun returns a run's units in insertion order.
	UnitsForRun(runID string) ([]Unit, error)
}
