package warehouse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDuckDBConnectInMemory(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()

	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect to in-memory DuckDB: %v", err)
	}
	defer w.Close()
}

func TestDuckDBConnectFileBased(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()

	dbPath := filepath.Join(t.TempDir(), "test.duckdb")
	if err := w.Connect(ctx, Config{Path: dbPath}); err != nil {
		t.Fatalf("failed to connect to file-based DuckDB: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestDuckDBExecAndQuery(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()
	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer w.Close()

	err := w.Exec(ctx, `CREATE TABLE trips_test (id INTEGER, distance DOUBLE)`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	err = w.Exec(ctx, `INSERT INTO trips_test VALUES (1, 2.5), (2, 10.0), (3, 0.0)`)
	if err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	rows, err := w.Query(ctx, `SELECT id, distance FROM trips_test WHERE distance > ? ORDER BY id`, 1.0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	var got []float64
	for rows.Next() {
		var id int
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, dist)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}
	if len(got) != 2 || got[0] != 2.5 || got[1] != 10.0 {
		t.Errorf("unexpected results: %v", got)
	}
}

func TestDuckDBQueryRow(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()
	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer w.Close()

	var n int
	if err := w.QueryRow(ctx, `SELECT 41 + 1`).Scan(&n); err != nil {
		t.Fatalf("query row failed: %v", err)
	}
	if n != 42 {
		t.Errorf("got %d, want 42", n)
	}
}

func TestDuckDBTableExists(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()
	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer w.Close()

	exists, err := w.TableExists(ctx, "yellow_2024_01")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("table should not exist yet")
	}

	if err := w.Exec(ctx, `CREATE TABLE yellow_2024_01 (x INTEGER)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	exists, err = w.TableExists(ctx, "yellow_2024_01")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("table should exist")
	}
}

func TestDuckDBColumns(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()
	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer w.Close()

	err := w.Exec(ctx, `CREATE TABLE t (a INTEGER, b VARCHAR, c DOUBLE)`)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	cols, err := w.Columns(ctx, "t")
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(cols) != len(want) {
		t.Fatalf("got %d columns, want %d", len(cols), len(want))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}

	if _, err := w.Columns(ctx, "missing"); err == nil {
		t.Error("expected error for missing table")
	}
}

func TestDuckDBLoadCSV(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()
	if err := w.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer w.Close()

	csvPath := filepath.Join(t.TempDir(), "factors.csv")
	csv := "vehicle_type,co2_grams_per_mile,vehicle_year_avg\nyellow_taxi,400.0,2015\ngreen_taxi,380.5,2016\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}

	if err := w.LoadCSV(ctx, "vehicle_emissions", csvPath); err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	var count int
	if err := w.QueryRow(ctx, `SELECT COUNT(*) FROM vehicle_emissions`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d rows, want 2", count)
	}

	var co2 float64
	err := w.QueryRow(ctx, `SELECT co2_grams_per_mile FROM vehicle_emissions WHERE vehicle_type = ?`, "yellow_taxi").Scan(&co2)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if co2 != 400.0 {
		t.Errorf("co2 = %v, want 400.0", co2)
	}

	// Loading again replaces the table rather than appending.
	if err := w.LoadCSV(ctx, "vehicle_emissions", csvPath); err != nil {
		t.Fatalf("second LoadCSV failed: %v", err)
	}
	if err := w.QueryRow(ctx, `SELECT COUNT(*) FROM vehicle_emissions`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d rows after reload, want 2", count)
	}
}

func TestDuckDBNotConnected(t *testing.T) {
	ctx := context.Background()
	w := NewDuckDB()

	if err := w.Exec(ctx, `SELECT 1`); err == nil {
		t.Error("Exec on unconnected adapter should fail")
	}
	if _, err := w.Query(ctx, `SELECT 1`); err == nil {
		t.Error("Query on unconnected adapter should fail")
	}
	var n int
	if err := w.QueryRow(ctx, `SELECT 1`).Scan(&n); err == nil {
		t.Error("QueryRow on unconnected adapter should fail at Scan")
	}
	if err := w.QueryRow(ctx, `SELECT 1`).Err(); err == nil {
		t.Error("QueryRow on unconnected adapter should carry an error")
	}
}
