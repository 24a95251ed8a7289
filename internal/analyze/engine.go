// Package analyze answers the aggregate questions over the published
// trip_emissions table. Every operation is read-only, excludes rows with
// a NULL trip_co2_kgs, and reports an empty qualifying set as an
// explicit no-data result instead of an error.
package analyze

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/derive"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// Bucket is a calendar grouping key for averaged emissions.
type Bucket int

const (
	BucketHour Bucket = iota
	BucketDayOfWeek
	BucketWeek
	BucketMonth
)

// Buckets lists all bucket kinds in presentation order.
var Buckets = []Bucket{BucketHour, BucketDayOfWeek, BucketWeek, BucketMonth}

// ParseBucket converts a CLI string into a Bucket.
func ParseBucket(s string) (Bucket, error) {
	switch s {
	case "hour":
		return BucketHour, nil
	case "day", "day-of-week":
		return BucketDayOfWeek, nil
	case "week":
		return BucketWeek, nil
	case "month":
		return BucketMonth, nil
	default:
		return 0, fmt.Errorf("unknown bucket kind %q (want hour, day, week, or month)", s)
	}
}

// column maps the bucket kind to its analysis-table column. Selection is
// by enumerated variant only, never by caller-supplied strings.
func (b Bucket) column() string {
	switch b {
	case BucketHour:
		return "hour_of_day"
	case BucketDayOfWeek:
		return "day_of_week"
	case BucketWeek:
		return "week_of_year"
	case BucketMonth:
		return "month_of_year"
	default:
		panic(fmt.Sprintf("analyze: unknown bucket kind %d", int(b)))
	}
}

func (b Bucket) String() string {
	switch b {
	case BucketHour:
		return "hour of day"
	case BucketDayOfWeek:
		return "day of week"
	case BucketWeek:
		return "week of year"
	case BucketMonth:
		return "month of year"
	default:
		return fmt.Sprintf("bucket(%d)", int(b))
	}
}

// Label renders a bucket value for reports.
func (b Bucket) Label(value int) string {
	switch b {
	case BucketHour:
		return fmt.Sprintf("%02d:00", value)
	case BucketDayOfWeek:
		if value >= 0 && value < len(trips.DayNames) {
			return trips.DayNames[value]
		}
		return fmt.Sprintf("day %d", value)
	case BucketWeek:
		return fmt.Sprintf("week %d", value)
	case BucketMonth:
		return trips.MonthName(value)
	default:
		return fmt.Sprintf("%d", value)
	}
}

// BucketMean is the average emissions for one bucket value.
type BucketMean struct {
	Value      int
	Label      string
	MeanCO2Kgs float64
}

// Extremes is the heaviest and lightest bucket by average emissions.
type Extremes struct {
	Bucket   Bucket
	Heaviest BucketMean
	Lightest BucketMean
}

// MonthTotal is one month's summed emissions. All twelve months are
// always present; months with no qualifying trips total 0.0.
type MonthTotal struct {
	Month       int
	TotalCO2Kgs float64
}

// Engine runs the aggregate queries.
type Engine struct {
	wh     warehouse.Warehouse
	logger *slog.Logger
}

// NewEngine returns an Engine over the given warehouse handle.
func NewEngine(wh warehouse.Warehouse, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{wh: wh, logger: logger}
}

// qualifyingWhere is the shared predicate for all aggregates: category
// match, non-null emissions, pickup within the half-open year window.
const qualifyingWhere = "vehicle_category = ? AND trip_co2_kgs IS NOT NULL AND pickup_ts >= ? AND pickup_ts < ?"

// LargestTrip returns the single highest-emission trip for the category
// and year range. Ties break toward the longer trip, then the earlier
// dropoff. found is false when no trip qualifies.
func (e *Engine) LargestTrip(ctx context.Context, cat trips.Category, years trips.YearRange) (trip *trips.DerivedTrip, found bool, err error) {
	start, end := years.Bounds()
	query := fmt.Sprintf(`
		SELECT pickup_ts, dropoff_ts, passenger_count, trip_distance_mi,
		       hour_of_day, day_of_week, week_of_year, month_of_year,
		       avg_mph, trip_co2_kgs
		FROM %s
		WHERE %s
		ORDER BY trip_co2_kgs DESC, trip_distance_mi DESC, dropoff_ts ASC
		LIMIT 1`, derive.AnalysisTable, qualifyingWhere)

	var t trips.DerivedTrip
	var co2 float64
	row := e.wh.QueryRow(ctx, query, cat.String(), start, end)
	err = row.Scan(
		&t.PickupTS, &t.DropoffTS, &t.PassengerCount, &t.TripDistanceMi,
		&t.HourOfDay, &t.DayOfWeek, &t.WeekOfYear, &t.MonthOfYear,
		&t.AvgMPH, &co2,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("largest trip query failed: %w", err)
	}
	t.Category = cat
	t.TripCO2Kgs = &co2
	return &t, true, nil
}

// HeavyLight returns the bucket values with the highest and lowest mean
// emissions. Mean ties break toward the lowest bucket value, making the
// result deterministic. found is false when no trip qualifies.
func (e *Engine) HeavyLight(ctx context.Context, bucket Bucket, cat trips.Category, years trips.YearRange) (*Extremes, bool, error) {
	means, err := e.bucketMeans(ctx, bucket, cat, years)
	if err != nil {
		return nil, false, err
	}
	if len(means) == 0 {
		return nil, false, nil
	}

	// means are in ascending bucket order, so the first strict winner is
	// the lowest bucket value among ties.
	heaviest, lightest := means[0], means[0]
	for _, m := range means[1:] {
		if m.MeanCO2Kgs > heaviest.MeanCO2Kgs {
			heaviest = m
		}
		if m.MeanCO2Kgs < lightest.MeanCO2Kgs {
			lightest = m
		}
	}
	return &Extremes{Bucket: bucket, Heaviest: heaviest, Lightest: lightest}, true, nil
}

// bucketMeans returns mean emissions per bucket value, ascending.
func (e *Engine) bucketMeans(ctx context.Context, bucket Bucket, cat trips.Category, years trips.YearRange) ([]BucketMean, error) {
	start, end := years.Bounds()
	col := bucket.column()
	query := fmt.Sprintf(`
		SELECT %s, AVG(trip_co2_kgs)
		FROM %s
		WHERE %s
		GROUP BY %s
		ORDER BY %s`, col, derive.AnalysisTable, qualifyingWhere, col, col)

	rows, err := e.wh.Query(ctx, query, cat.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("bucket mean query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var means []BucketMean
	for rows.Next() {
		var m BucketMean
		if err := rows.Scan(&m.Value, &m.MeanCO2Kgs); err != nil {
			return nil, fmt.Errorf("failed to scan bucket mean: %w", err)
		}
		m.Label = bucket.Label(m.Value)
		means = append(means, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket means: %w", err)
	}
	return means, nil
}

// MonthlyTotals returns summed emissions per calendar month as an
// ordered twelve-entry series, zero-filled for empty months.
func (e *Engine) MonthlyTotals(ctx context.Context, cat trips.Category, years trips.YearRange) ([]MonthTotal, error) {
	start, end := years.Bounds()
	query := fmt.Sprintf(`
		SELECT month_of_year, SUM(trip_co2_kgs)
		FROM %s
		WHERE %s
		GROUP BY month_of_year`, derive.AnalysisTable, qualifyingWhere)

	rows, err := e.wh.Query(ctx, query, cat.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("monthly totals query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byMonth := make(map[int]float64, 12)
	for rows.Next() {
		var month int
		var total float64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		byMonth[month] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly totals: %w", err)
	}

	totals := make([]MonthTotal, 0, 12)
	for m := 1; m <= 12; m++ {
		totals = append(totals, MonthTotal{Month: m, TotalCO2Kgs: byMonth[m]})
	}
	return totals, nil
}
