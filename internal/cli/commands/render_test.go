package commands

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
)

func mockRows(t *testing.T) *sql.Rows {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"month", "total_co2_kgs"}).
			AddRow("January", 12.5).
			AddRow("February", 0.0),
	)

	rows, err := db.Query("SELECT month, total_co2_kgs FROM totals")
	require.NoError(t, err)
	return rows
}

func TestRenderResultsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, mockRows(t), "table"))

	out := buf.String()
	require.Contains(t, out, "MONTH")
	require.Contains(t, out, "January")
	require.Contains(t, out, "12.5")
	require.Contains(t, out, "(2 rows)")
}

func TestRenderResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, mockRows(t), "json"))

	var results []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 2)
	require.Equal(t, "January", results[0]["month"])
}

func TestRenderResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, mockRows(t), "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "month,total_co2_kgs", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "January,"))
}

func TestRenderResultsMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, mockRows(t), "md"))

	out := buf.String()
	require.Contains(t, out, "| month | total_co2_kgs |")
	require.Contains(t, out, "| --- | --- |")
	require.Contains(t, out, "| January |")
}

func TestRenderResultsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}))
	rows, err := db.Query("SELECT a FROM t")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderResults(&buf, rows, "table"))
	require.Contains(t, buf.String(), "(0 rows)")
}

func TestEscapeCSV(t *testing.T) {
	require.Equal(t, "plain", escapeCSV("plain"))
	require.Equal(t, `"a,b"`, escapeCSV("a,b"))
	require.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
}

func TestRenderUnits(t *testing.T) {
	var buf bytes.Buffer
	renderUnits(&buf, []state.Unit{
		{Stage: "dedupe", Name: "yellow_2024_01", Status: state.StatusSuccess, Rows: 3, Duration: time.Second},
		{Stage: "load", Name: "yellow_2024_02", Status: state.StatusSkipped, Reason: "source fetch failed"},
	})

	out := buf.String()
	require.Contains(t, out, "dedupe")
	require.Contains(t, out, "skipped")
	require.Contains(t, out, "source fetch failed")
	require.Contains(t, out, "(2 units, 1 skipped)")
}

func TestRenderUnitsEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderUnits(&buf, nil)
	require.Empty(t, buf.String())
}
