// Package ingest loads raw source data into the warehouse: one table per
// (category, year, month) period from parquet files, plus the
// vehicle_emissions reference table from CSV.
//
// Fetching is parallel across periods since every period is an
// independent batch; table creation is serialized on the single
// warehouse handle so a partially merged table can never be observed. A
// failed period is recorded as skipped and never aborts its siblings.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// DefaultURLTemplate is the TLC trip-record mirror. Placeholders:
// {category}, {year}, {month} (two digits).
const DefaultURLTemplate = "https://d37ci6vzurychx.cloudfront.net/trip-data/{category}_tripdata_{year}-{month}.parquet"

// EmissionsTable is the reference table name.
const EmissionsTable = "vehicle_emissions"

// Loader fetches and loads raw per-period batches.
type Loader struct {
	// Client is used for downloads. Timeouts are the caller's concern;
	// a nil client falls back to http.DefaultClient.
	Client *http.Client

	// URLTemplate is the source location pattern (DefaultURLTemplate
	// when empty).
	URLTemplate string

	// DataDir is where downloaded parquet files are kept.
	DataDir string

	// Concurrency bounds parallel downloads (4 when <= 0).
	Concurrency int

	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

func (l *Loader) client() *http.Client {
	if l.Client == nil {
		return http.DefaultClient
	}
	return l.Client
}

// URL returns the source URL for a period.
func (l *Loader) URL(p trips.Period) string {
	tmpl := l.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	r := strings.NewReplacer(
		"{category}", p.Category.String(),
		"{year}", strconv.Itoa(p.Year),
		"{month}", fmt.Sprintf("%02d", int(p.Month)),
	)
	return r.Replace(tmpl)
}

// localPath returns where a period's parquet file is stored on disk.
func (l *Loader) localPath(p trips.Period) string {
	return filepath.Join(l.DataDir, p.TableName()+".parquet")
}

// fetchResult pairs a period with its downloaded file, or the reason the
// download was skipped.
type fetchResult struct {
	period trips.Period
	path   string
	err    error
}

// Run fetches all periods in parallel, then loads each downloaded file
// into its raw table sequentially. It returns one unit per period for
// the run report; it only returns an error for environmental failures
// (e.g. an unwritable data dir), never for individual periods.
func (l *Loader) Run(ctx context.Context, wh warehouse.Warehouse, periods []trips.Period) ([]state.Unit, error) {
	if err := os.MkdirAll(l.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	results := l.fetchAll(ctx, periods)

	units := make([]state.Unit, 0, len(periods))
	for _, res := range results {
		start := time.Now()
		unit := state.Unit{Stage: "load", Name: res.period.TableName()}

		if res.err != nil {
			l.logger().Warn("period skipped", "period", res.period.String(), "error", res.err)
			unit.Status = state.StatusSkipped
			unit.Reason = res.err.Error()
			units = append(units, unit)
			continue
		}

		rows, err := l.loadPeriod(ctx, wh, res.period, res.path)
		unit.Duration = time.Since(start)
		if err != nil {
			l.logger().Warn("period skipped", "period", res.period.String(), "error", err)
			unit.Status = state.StatusSkipped
			unit.Reason = err.Error()
			units = append(units, unit)
			continue
		}

		l.logger().Info("period loaded", "table", res.period.TableName(), "rows", rows)
		unit.Status = state.StatusSuccess
		unit.Rows = rows
		units = append(units, unit)
	}
	return units, nil
}

// fetchAll downloads every period's parquet file, bounded-parallel.
// Results come back in the input order.
func (l *Loader) fetchAll(ctx context.Context, periods []trips.Period) []fetchResult {
	results := make([]fetchResult, len(periods))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	concurrency := l.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g.SetLimit(concurrency)

	for i, p := range periods {
		g.Go(func() error {
			path, err := l.fetch(gctx, p)
			mu.Lock()
			results[i] = fetchResult{period: p, path: path, err: err}
			mu.Unlock()
			// Fetch failures are per-period, never group-fatal.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetch downloads one period's file unless a previous run already has it.
func (l *Loader) fetch(ctx context.Context, p trips.Period) (string, error) {
	path := l.localPath(p)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		l.logger().Debug("using cached parquet", "period", p.String(), "path", path)
		return path, nil
	}

	url := l.URL(p)
	l.logger().Info("fetching period", "period", p.String(), "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("source fetch failed: %w", err)
	}
	resp, err := l.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("source fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source fetch failed: %s returned %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(l.DataDir, p.TableName()+".parquet.*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("source fetch failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finish download: %w", err)
	}
	// Rename on completion so a torn download never masquerades as a
	// cached file.
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to place download: %w", err)
	}
	return path, nil
}

// loadPeriod replaces the period's raw table from its parquet file and
// returns the row count.
func (l *Loader) loadPeriod(ctx context.Context, wh warehouse.Warehouse, p trips.Period, path string) (int64, error) {
	table := p.TableName()
	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet('%s', union_by_name=true)",
		table, strings.ReplaceAll(path, "'", "''"),
	)
	if err := wh.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", table, err)
	}

	var rows int64
	if err := wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&rows); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return rows, nil
}
