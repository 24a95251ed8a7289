package warehouse

import (
	"context"
	"strings"
	"testing"
)

func TestNewUnknownType(t *testing.T) {
	_, err := New(Config{Type: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown warehouse type")
	}
	if !strings.Contains(err.Error(), "oracle") {
		t.Errorf("error should name the unknown type: %v", err)
	}
	// The error lists what is registered, to make typos obvious.
	if !strings.Contains(err.Error(), "duckdb") {
		t.Errorf("error should list registered adapters: %v", err)
	}
}

func TestNewRegisteredTypes(t *testing.T) {
	for _, typ := range []string{"duckdb", "postgres"} {
		if _, err := New(Config{Type: typ}); err != nil {
			t.Errorf("New(%q) failed: %v", typ, err)
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	Register("duckdb", func() Warehouse { return NewDuckDB() })
}

func TestOpenConnects(t *testing.T) {
	ctx := context.Background()
	w, err := Open(ctx, Config{Type: "duckdb", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	if err := w.Exec(ctx, `SELECT 1`); err != nil {
		t.Errorf("opened warehouse should be usable: %v", err)
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	ctx := context.Background()
	w := NewPostgres()
	if err := w.Connect(ctx, Config{}); err == nil {
		t.Error("postgres connect without DSN should fail")
	}
}

func TestPostgresNotConnected(t *testing.T) {
	ctx := context.Background()
	w := NewPostgres()
	var n int
	if err := w.QueryRow(ctx, `SELECT 1`).Scan(&n); err == nil {
		t.Error("QueryRow on unconnected adapter should fail at Scan")
	}
}
