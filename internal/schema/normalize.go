// Package schema maps heterogeneous raw trip batches onto the canonical
// staging shape. The two source families name their timestamp columns
// differently (tpep_* for yellow, lpep_* for green) and drift across
// periods in the rest of their columns; the normalizer keeps only the
// fields the pipeline uses.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// columnPair is one known pickup/dropoff naming convention.
type columnPair struct {
	pickup  string
	dropoff string
}

// Known conventions, checked in order. Both are accepted for either
// category: a handful of published months carry the wrong prefix.
var conventions = []columnPair{
	{pickup: "tpep_pickup_datetime", dropoff: "tpep_dropoff_datetime"},
	{pickup: "lpep_pickup_datetime", dropoff: "lpep_dropoff_datetime"},
}

// CanonicalColumns is the staging shape, in projection order.
var CanonicalColumns = []string{
	"pickup_ts", "dropoff_ts", "passenger_count", "trip_distance_mi", "vehicle_category",
}

// MismatchError reports a batch whose columns match no known convention.
// The batch is skipped and excluded from the merge; sibling batches are
// unaffected.
type MismatchError struct {
	Table   string
	Columns []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: no known pickup/dropoff column pair among [%s]",
		e.Table, strings.Join(e.Columns, ", "))
}

// Normalizer projects raw batches onto the canonical staging shape.
type Normalizer struct {
	wh     warehouse.Warehouse
	logger *slog.Logger
}

// NewNormalizer returns a Normalizer over the given warehouse handle.
func NewNormalizer(wh warehouse.Warehouse, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{wh: wh, logger: logger}
}

// DetectTimestamps returns the pickup/dropoff column pair present in the
// table, or a *MismatchError when neither convention is found.
func (n *Normalizer) DetectTimestamps(ctx context.Context, table string) (pickup, dropoff string, err error) {
	cols, err := n.wh.Columns(ctx, table)
	if err != nil {
		return "", "", fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	for _, c := range conventions {
		if slices.Contains(cols, c.pickup) && slices.Contains(cols, c.dropoff) {
			return c.pickup, c.dropoff, nil
		}
	}
	return "", "", &MismatchError{Table: table, Columns: cols}
}

// IsNormalized reports whether table exists and already carries the
// canonical staging shape.
func (n *Normalizer) IsNormalized(ctx context.Context, table string) (bool, error) {
	exists, err := n.wh.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if !exists {
		return false, nil
	}
	cols, err := n.wh.Columns(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	return slices.Equal(cols, CanonicalColumns), nil
}

// Normalize builds the staging table for a period from its raw table,
// keeping exactly {pickup_ts, dropoff_ts, passenger_count,
// trip_distance_mi} and tagging every row with the period's category.
// Source columns that are absent are projected as NULL so the filter
// chain can reject the affected rows instead of the whole batch.
func (n *Normalizer) Normalize(ctx context.Context, p trips.Period) error {
	raw := p.TableName()

	pickup, dropoff, err := n.DetectTimestamps(ctx, raw)
	if err != nil {
		return err
	}

	cols, err := n.wh.Columns(ctx, raw)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", raw, err)
	}
	passengerExpr := "CAST(NULL AS BIGINT)"
	if slices.Contains(cols, "passenger_count") {
		passengerExpr = "CAST(passenger_count AS BIGINT)"
	}
	distanceExpr := "CAST(NULL AS DOUBLE)"
	if slices.Contains(cols, "trip_distance") {
		distanceExpr = "CAST(trip_distance AS DOUBLE)"
	}

	stg := p.StagingTableName()
	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s AS
		SELECT
			CAST(%s AS TIMESTAMP) AS pickup_ts,
			CAST(%s AS TIMESTAMP) AS dropoff_ts,
			%s AS passenger_count,
			%s AS trip_distance_mi,
			'%s' AS vehicle_category
		FROM %s`,
		stg, pickup, dropoff, passengerExpr, distanceExpr, p.Category, raw)

	if err := n.wh.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to normalize %s: %w", raw, err)
	}

	n.logger.Debug("normalized batch", "table", raw, "staging", stg, "pickup_col", pickup, "dropoff_col", dropoff)
	return nil
}
