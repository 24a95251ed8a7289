package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// Model-year sanity bounds for the reference table.
const (
	minVehicleYear = 1980
	maxVehicleYear = 2035
)

// LoadEmissionFactors loads the vehicle_emissions reference table from a
// headered CSV file, deduplicates it, and validates its invariants:
// no NULL key fields, non-negative co2_grams_per_mile, vehicle_year_avg
// within [1980, 2035], and exactly one row per known vehicle category.
// The table is immutable for the rest of the run.
func LoadEmissionFactors(ctx context.Context, wh warehouse.Warehouse, csvPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := wh.LoadCSV(ctx, EmissionsTable, csvPath); err != nil {
		return err
	}
	if err := wh.Exec(ctx, fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT DISTINCT * FROM %s", EmissionsTable, EmissionsTable,
	)); err != nil {
		return fmt.Errorf("failed to deduplicate %s: %w", EmissionsTable, err)
	}

	if err := validateEmissionFactors(ctx, wh); err != nil {
		return err
	}

	var rows int64
	if err := wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+EmissionsTable).Scan(&rows); err != nil {
		return fmt.Errorf("failed to count %s: %w", EmissionsTable, err)
	}
	logger.Info("emission factors loaded", "table", EmissionsTable, "rows", rows)
	return nil
}

func validateEmissionFactors(ctx context.Context, wh warehouse.Warehouse) error {
	var problems []string

	var badRows int64
	err := wh.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE vehicle_type IS NULL
		   OR co2_grams_per_mile IS NULL OR co2_grams_per_mile < 0
		   OR vehicle_year_avg IS NULL OR vehicle_year_avg < ? OR vehicle_year_avg > ?`,
		EmissionsTable), minVehicleYear, maxVehicleYear).Scan(&badRows)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", EmissionsTable, err)
	}
	if badRows > 0 {
		problems = append(problems, fmt.Sprintf("%d rows with null keys, negative co2, or out-of-range model year", badRows))
	}

	for _, cat := range trips.Categories {
		var count int64
		err := wh.QueryRow(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE vehicle_type = ?", EmissionsTable),
			cat.EmissionsKey(),
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to validate %s: %w", EmissionsTable, err)
		}
		if count != 1 {
			problems = append(problems, fmt.Sprintf("%d rows for %s (want exactly 1)", count, cat.EmissionsKey()))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid emission factor table: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EmissionFactors reads the reference table back as domain rows.
func EmissionFactors(ctx context.Context, wh warehouse.Warehouse) ([]trips.EmissionFactor, error) {
	rows, err := wh.Query(ctx, fmt.Sprintf(
		"SELECT vehicle_type, co2_grams_per_mile, vehicle_year_avg FROM %s ORDER BY vehicle_type", EmissionsTable,
	))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var factors []trips.EmissionFactor
	for rows.Next() {
		var f trips.EmissionFactor
		if err := rows.Scan(&f.VehicleType, &f.CO2GramsPerMile, &f.VehicleYearAvg); err != nil {
			return nil, fmt.Errorf("failed to scan emission factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emission factors: %w", err)
	}
	return factors, nil
}
