package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func() Warehouse { return NewDuckDB() })
}

// DuckDB implements Warehouse over a local DuckDB database. This is the
// default analytical store for the pipeline.
type DuckDB struct {
	db *sql.DB
}

// NewDuckDB creates an unconnected DuckDB adapter.
func NewDuckDB() *DuckDB {
	return &DuckDB{}
}

// Connect opens the DuckDB database at cfg.Path (":memory:" when empty).
func (w *DuckDB) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	// The pipeline is single-writer by design; one connection keeps all
	// DDL (shadow builds, renames) on the same session.
	db.SetMaxOpenConns(1)

	w.db = db
	return nil
}

// Close closes the database.
func (w *DuckDB) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (w *DuckDB) Exec(ctx context.Context, query string, args ...any) error {
	if w.db == nil {
		return fmt.Errorf("warehouse not connected")
	}
	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Query runs a statement that returns rows.
func (w *DuckDB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
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
func (w *DuckDB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if w.db == nil {
		return errRow(fmt.Errorf("warehouse not connected"))
	}
	return &Row{row: w.db.QueryRowContext(ctx, query, args...)}
}

// Begin starts a transaction.
func (w *DuckDB) Begin(ctx context.Context) (*sql.Tx, error) {
	if w.db == nil {
		return nil, fmt.Errorf("warehouse not connected")
	}
	return w.db.BeginTx(ctx, nil)
}

// TableExists reports whether a table exists in the main schema.
func (w *DuckDB) TableExists(ctx context.Context, table string) (bool, error) {
	if w.db == nil {
		return false, fmt.Errorf("warehouse not connected")
	}
	var count int
	err := w.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_name = ?
	`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// Columns returns the column names of a table in ordinal order.
func (w *DuckDB) Columns(ctx context.Context, table string) ([]string, error) {
	if w.db == nil {
		return nil, fmt.Errorf("warehouse not connected")
	}
	rows, err := w.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
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

// LoadCSV replaces a table with the contents of a headered CSV file,
// letting DuckDB infer the column types.
func (w *DuckDB) LoadCSV(ctx context.Context, table, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve csv path: %w", err)
	}
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		quoteIdent(table), strings.ReplaceAll(absPath, "'", "''"),
	)
	if err := w.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load csv into %s: %w", table, err)
	}
	return nil
}

// quoteIdent quotes an identifier for inclusion in DDL, where parameter
// binding is not available. Identifiers in this codebase are produced by
// typed helpers (trips.Period), never taken from external input.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Warehouse = (*DuckDB)(nil)
