// Package derive builds the trip_emissions analysis table from the
// cleaned staging batches and the vehicle_emissions reference table.
//
// The table is built into a shadow copy and swapped in atomically, so a
// mid-build failure leaves the previous analysis table queryable. Trips
// whose category has no emission factor keep a NULL trip_co2_kgs rather
// than being dropped, preserving row counts for audit.
package derive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/ingest"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// AnalysisTable is the name of the persisted analysis table.
const AnalysisTable = "trip_emissions"

// Builder materializes the analysis table.
type Builder struct {
	wh     warehouse.Warehouse
	logger *slog.Logger
}

// NewBuilder returns a Builder over the given warehouse handle.
func NewBuilder(wh warehouse.Warehouse, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{wh: wh, logger: logger}
}

// periodSelect is the per-batch projection merged into the analysis
// table. Calendar buckets come from pickup_ts in source-local time;
// elapsed hours are positive by the duration-filter invariant. All
// arithmetic stays in DOUBLE; nothing is rounded until presentation.
func periodSelect(p trips.Period) string {
	return fmt.Sprintf(`
SELECT
    t.pickup_ts,
    t.dropoff_ts,
    t.passenger_count,
    t.trip_distance_mi,
    t.vehicle_category,
    CAST(hour(t.pickup_ts) AS INTEGER) AS hour_of_day,
    CAST(dayofweek(t.pickup_ts) AS INTEGER) AS day_of_week,
    CAST(weekofyear(t.pickup_ts) AS INTEGER) AS week_of_year,
    CAST(month(t.pickup_ts) AS INTEGER) AS month_of_year,
    t.trip_distance_mi / (epoch(t.dropoff_ts - t.pickup_ts) / 3600.0) AS avg_mph,
    t.trip_distance_mi * ve.co2_grams_per_mile / 1000.0 AS trip_co2_kgs
FROM %s t
LEFT JOIN %s ve ON ve.vehicle_type = '%s'`,
		p.StagingTableName(), ingest.EmissionsTable, p.Category.EmissionsKey())
}

// Build merges every available staging batch into the analysis table.
// Periods whose staging table is missing (failed fetch or normalization)
// are recorded as skipped holes; the merge proceeds without them. Build
// fails only when no batch at all is available, or when the publish swap
// itself fails.
func (b *Builder) Build(ctx context.Context, periods []trips.Period) ([]state.Unit, error) {
	var units []state.Unit
	var selects []string
	var included []trips.Period

	for _, p := range periods {
		stg := p.StagingTableName()
		exists, err := b.wh.TableExists(ctx, stg)
		if err != nil {
			return units, fmt.Errorf("failed to check %s: %w", stg, err)
		}
		if !exists {
			b.logger.Warn("staging batch missing, merge continues without it", "period", p.String())
			units = append(units, state.Unit{
				Stage:  "derive",
				Name:   stg,
				Status: state.StatusSkipped,
				Reason: "staging table missing",
			})
			continue
		}
		selects = append(selects, periodSelect(p))
		included = append(included, p)
	}

	if len(selects) == 0 {
		return units, fmt.Errorf("no cleaned batches available to derive from")
	}

	start := time.Now()
	shadow := AnalysisTable + "__build"
	buildSQL := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", shadow, strings.Join(selects, "\nUNION ALL\n"))
	if err := b.wh.Exec(ctx, buildSQL); err != nil {
		return units, fmt.Errorf("failed to build analysis table: %w", err)
	}

	if err := b.publish(ctx, shadow); err != nil {
		return units, err
	}

	var total int64
	if err := b.wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+AnalysisTable).Scan(&total); err != nil {
		return units, fmt.Errorf("failed to count %s: %w", AnalysisTable, err)
	}

	for _, p := range included {
		units = append(units, state.Unit{
			Stage:  "derive",
			Name:   p.StagingTableName(),
			Status: state.StatusSuccess,
		})
	}
	units = append(units, state.Unit{
		Stage:    "publish",
		Name:     AnalysisTable,
		Status:   state.StatusSuccess,
		Rows:     total,
		Duration: time.Since(start),
	})

	b.reportMissingFactors(ctx)

	b.logger.Info("analysis table published", "table", AnalysisTable, "rows", total, "batches", len(included))
	return units, nil
}

// publish atomically swaps the shadow build in as the analysis table.
func (b *Builder) publish(ctx context.Context, shadow string) error {
	tx, err := b.wh.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin publish: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+AnalysisTable); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to drop previous analysis table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadow, AnalysisTable)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to publish analysis table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish: %w", err)
	}
	return nil
}

// reportMissingFactors logs how many rows per category carry a NULL
// trip_co2_kgs because their emission factor was absent. Such rows stay
// in the table and are excluded from every aggregate.
func (b *Builder) reportMissingFactors(ctx context.Context) {
	for _, cat := range trips.Categories {
		var nullCO2 int64
		err := b.wh.QueryRow(ctx, fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE vehicle_category = ? AND trip_co2_kgs IS NULL", AnalysisTable,
		), cat.String()).Scan(&nullCO2)
		if err != nil {
			b.logger.Warn("failed to check for missing emission factors", "category", cat.String(), "error", err)
			continue
		}
		if nullCO2 > 0 {
			b.logger.Warn("trips without emission factor kept with null co2",
				"category", cat.String(), "rows", nullCO2)
		}
	}
}
