package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func() Warehouse { return NewPostgres() })
}

// Postgres implements Warehouse over a Postgres database via pgx. It
// serves the ad-hoc query surface only, for reading analysis tables
// replicated into a shared server: the pipeline phases emit DuckDB SQL
// (? placeholders, CREATE OR REPLACE TABLE, read_parquet, DuckDB date
// functions) and must run against the duckdb adapter.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates an unconnected Postgres adapter.
func NewPostgres() *Postgres {
	return &Postgres{}
}

// Connect opens the database described by cfg.DSN.
func (w *Postgres) Connect(ctx context.Context, cfg Config) error {
	if cfg.DSN == "" {
		return fmt.Errorf("postgres warehouse requires a dsn")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	w.db = db
	return nil
}

// Close closes the connection pool.
func (w *Postgres) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (w *Postgres) Exec(ctx context.Context, query string, args ...any) error {
	if w.db == nil {
		return fmt.Errorf("warehouse not connected")
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Query runs a statement that returns rows.
func (w *Postgres) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if w.db == nil {
		return nil, fmt.Errorf("warehouse not connected")
	}
	//nolint:rowserrcheck // rows.Err() is checked by the caller after iteration
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// QueryRow runs a single-row query.
func (w *Postgres) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if w.db == nil {
		return errRow(fmt.Errorf("warehouse not connected"))
	}
	return &Row{row: w.db.QueryRowContext(ctx, query, args...)}
}

// Begin starts a transaction.
func (w *Postgres) Begin(ctx context.Context) (*sql.Tx, error) {
	if w.db == nil {
		return nil, fmt.Errorf("warehouse not connected")
	}
	return w.db.BeginTx(ctx, nil)
}

// TableExists reports whether a table exists in the public schema.
func (w *Postgres) TableExists(ctx context.Context, table string) (bool, error) {
	if w.db == nil {
		return false, fmt.Errorf("warehouse not connected")
	}
	var count int
	err := w.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// Columns returns the column names of a table in ordinal order.
func (w *Postgres) Columns(ctx context.Context, table string) ([]string, error) {
	if w.db == nil {
		return nil, fmt.Errorf("warehouse not connected")
	}
	rows, err := w.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

// LoadCSV loads a headered CSV file into a table using COPY. The table
// must already exist; Postgres cannot infer a schema from the file.
func (w *Postgres) LoadCSV(ctx context.Context, table, path string) error {
	return fmt.Errorf("csv load into %s: not supported by the postgres adapter, load via duckdb and replicate", table)
}

var _ Warehouse = (*Postgres)(nil)
