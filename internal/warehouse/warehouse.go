// Package warehouse provides the analytical-store adapters for the
// emissions pipeline. The default target is DuckDB; a query-only
// Postgres adapter is registered for deployments that replicate the
// analysis table into a shared database.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Config holds the configuration for connecting to a warehouse.
type Config struct {
	// Type selects the adapter ("duckdb", "postgres").
	Type string

	// Path is the database file for file-based stores. Use ":memory:"
	// for an in-memory DuckDB instance.
	Path string

	// DSN is the connection string for network-based stores.
	DSN string
}

// Rows wraps sql.Rows so callers don't import database/sql for iteration.
type Rows struct {
	*sql.Rows
}

// Row wraps a single-row query result. sql.Row cannot carry a
// constructed error, so adapter-level failures (an unconnected handle)
// are held here and surfaced at Scan time, matching sql.Row semantics.
type Row struct {
	row *sql.Row
	err error
}

// errRow returns a Row that fails every Scan with err.
func errRow(err error) *Row {
	return &Row{err: err}
}

// Scan copies the columns of the row into dest, or returns the error
// deferred from the query.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

// Err returns the error deferred from the query, if any.
func (r *Row) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.row.Err()
}

// Warehouse is the scoped store handle passed into each pipeline
// component. One handle is acquired per run and released when the run
// finishes; components never open their own connections.
type Warehouse interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs a statement that returns no rows. args are bound as
	// query parameters, never interpolated.
	Exec(ctx context.Context, query string, args ...any) error

	// Query runs a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (*Rows, error)

	// QueryRow runs a statement expected to return at most one row.
	// Errors are deferred until the Row is scanned.
	QueryRow(ctx context.Context, query string, args ...any) *Row

	// Begin starts a transaction, used for the atomic table-swap publish.
	Begin(ctx context.Context) (*sql.Tx, error)

	// TableExists reports whether a table is present in the default schema.
	TableExists(ctx context.Context, table string) (bool, error)

	// Columns returns the column names of a table in ordinal order.
	Columns(ctx context.Context, table string) ([]string, error)

	// LoadCSV loads a headered CSV file into a table, replacing it,
	// with column types inferred by the store.
	LoadCSV(ctx context.Context, table, path string) error
}

// Factory creates an unconnected adapter instance.
type Factory func() Warehouse

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an adapter type available by name. It panics on
// duplicate registration, which indicates a programming error.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("warehouse: adapter %q registered twice", name))
	}
	registry[name] = f
}

// New returns an unconnected adapter for the configured type.
func New(cfg Config) (Warehouse, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown warehouse type %q (registered: %v)", cfg.Type, registered())
	}
	return f(), nil
}

// Open creates and connects an adapter in one step.
func Open(ctx context.Context, cfg Config) (Warehouse, error) {
	w, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return w, nil
}

func registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
