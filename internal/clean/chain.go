// Package clean applies the validity filter chain to staged trip batches.
//
// The chain order is fixed: deduplication runs first, against the raw
// table while every source column is still visible, so later deletions
// cannot manufacture new duplicate pairs. The remaining filters are
// DELETE predicates over the normalized staging table and commute with
// each other. Every stage is idempotent: once a period's staging table
// is published, re-runs filter that table rather than rebuilding it
// from raw, so an already-clean batch loses nothing.
package clean

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/schema"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// filterStage is one DELETE-based stage of the chain, a pure row
// predicate over the staging table.
type filterStage struct {
	name      string
	predicate string
}

// The DELETE stages, applied in order after deduplication. Bounds follow
// the strict reading: zero-length and negative durations are invalid,
// exactly 24 hours is not.
var filterStages = []filterStage{
	{
		name:      "passenger_count",
		predicate: "passenger_count IS NULL OR passenger_count <= 0",
	},
	{
		name:      "trip_distance",
		predicate: "trip_distance_mi IS NULL OR trip_distance_mi <= 0 OR trip_distance_mi > 100",
	},
	{
		name: "trip_duration",
		predicate: "pickup_ts IS NULL OR dropoff_ts IS NULL" +
			" OR (dropoff_ts - pickup_ts) <= INTERVAL '0 seconds'" +
			" OR (dropoff_ts - pickup_ts) > INTERVAL '24 hours'",
	},
}

// Cleaner runs the filter chain for one pipeline run.
type Cleaner struct {
	wh         warehouse.Warehouse
	normalizer *schema.Normalizer
	logger     *slog.Logger
}

// NewCleaner returns a Cleaner over the given warehouse handle.
func NewCleaner(wh warehouse.Warehouse, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cleaner{
		wh:         wh,
		normalizer: schema.NewNormalizer(wh, logger),
		logger:     logger,
	}
}

// CleanPeriod runs the full chain for one period: dedupe the raw table,
// normalize it into the staging table, then apply the DELETE stages.
// Stage failures are recorded and skipped; they never abort the period,
// and a failed period never aborts its siblings. The returned units
// carry one entry per stage for the run report.
func (c *Cleaner) CleanPeriod(ctx context.Context, p trips.Period) []state.Unit {
	var units []state.Unit
	raw := p.TableName()

	exists, err := c.wh.TableExists(ctx, raw)
	if err != nil || !exists {
		reason := "raw table missing"
		if err != nil {
			reason = err.Error()
		}
		c.logger.Warn("skipping period", "period", p.String(), "reason", reason)
		return append(units, state.Unit{Stage: "clean", Name: raw, Status: state.StatusSkipped, Reason: reason})
	}

	units = append(units, c.runStage(ctx, "dedupe", raw, func() (int64, error) {
		return c.dedupe(ctx, raw)
	}))

	// A published staging table in the canonical shape is the chain's
	// sole input on re-runs: rebuilding it from raw would resurrect every
	// previously filtered row. Reload the period to force a rebuild.
	stg := p.StagingTableName()
	start := time.Now()
	published, err := c.normalizer.IsNormalized(ctx, stg)
	if err != nil {
		c.logger.Warn("could not inspect staging table, rebuilding", "table", stg, "error", err)
	}
	if published {
		c.logger.Debug("staging table already published, keeping it", "table", stg)
		units = append(units, state.Unit{
			Stage:    "normalize",
			Name:     raw,
			Status:   state.StatusSuccess,
			Duration: time.Since(start),
		})
	} else {
		// Normalization failure excludes the batch from the merge but
		// leaves the (deduplicated) raw table in place.
		if err := c.normalizer.Normalize(ctx, p); err != nil {
			c.logger.Warn("batch excluded from merge", "table", raw, "error", err)
			return append(units, state.Unit{
				Stage:    "normalize",
				Name:     raw,
				Status:   state.StatusSkipped,
				Reason:   err.Error(),
				Duration: time.Since(start),
			})
		}
		units = append(units, state.Unit{
			Stage:    "normalize",
			Name:     raw,
			Status:   state.StatusSuccess,
			Duration: time.Since(start),
		})
	}
	for _, stage := range filterStages {
		units = append(units, c.runStage(ctx, stage.name, stg, func() (int64, error) {
			return c.applyFilter(ctx, stg, stage)
		}))
	}
	return units
}

// runStage executes one stage and converts its outcome into a run unit.
// A failed stage is recorded as skipped with its reason, per the
// catch-log-continue contract.
func (c *Cleaner) runStage(ctx context.Context, stage, table string, fn func() (int64, error)) state.Unit {
	start := time.Now()
	removed, err := fn()
	unit := state.Unit{
		Stage:    stage,
		Name:     table,
		Duration: time.Since(start),
	}
	if err != nil {
		c.logger.Warn("filter stage skipped", "stage", stage, "table", table, "error", err)
		unit.Status = state.StatusSkipped
		unit.Reason = err.Error()
		return unit
	}
	c.logger.Info("filter stage applied", "stage", stage, "table", table, "rows_removed", removed)
	unit.Status = state.StatusSuccess
	unit.Rows = removed
	return unit
}

// dedupe collapses exact full-row duplicates in a table to one row. The
// distinct set is built into a shadow table and swapped in atomically,
// so a mid-build failure leaves the original table queryable.
func (c *Cleaner) dedupe(ctx context.Context, table string) (int64, error) {
	var before, after int64
	if err := c.wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&before); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	shadow := table + "__dedup"
	if err := c.wh.Exec(ctx, fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT DISTINCT * FROM %s", shadow, table,
	)); err != nil {
		return 0, fmt.Errorf("failed to build dedup shadow of %s: %w", table, err)
	}

	if err := swapTables(ctx, c.wh, shadow, table); err != nil {
		return 0, err
	}

	if err := c.wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&after); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return before - after, nil
}

// applyFilter deletes the rows matching the stage predicate and returns
// how many were removed.
func (c *Cleaner) applyFilter(ctx context.Context, table string, stage filterStage) (int64, error) {
	var matched int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, stage.predicate)
	if err := c.wh.QueryRow(ctx, countQuery).Scan(&matched); err != nil {
		return 0, fmt.Errorf("failed to count %s rows in %s: %w", stage.name, table, err)
	}
	if matched == 0 {
		return 0, nil
	}
	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE %s", table, stage.predicate)
	if err := c.wh.Exec(ctx, deleteQuery); err != nil {
		return 0, fmt.Errorf("failed to apply %s filter to %s: %w", stage.name, table, err)
	}
	return matched, nil
}

// swapTables atomically replaces dst with src. The original dst survives
// any failure before the commit.
func swapTables(ctx context.Context, wh warehouse.Warehouse, src, dst string) error {
	tx, err := wh.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin swap of %s: %w", dst, err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+dst); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to drop %s during swap: %w", dst, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", src, dst)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap of %s: %w", dst, err)
	}
	return nil
}
