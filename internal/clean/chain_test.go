package clean

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/testutil"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

func openTestWarehouse(t *testing.T) warehouse.Warehouse {
	t.Helper()
	wh, err := warehouse.Open(context.Background(), warehouse.Config{Type: "duckdb", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = wh.Close() })
	return wh
}

// seedRawTable creates a yellow raw table carrying one valid trip, an
// exact duplicate of it, and one row violating each filter stage.
func seedRawTable(t *testing.T, wh warehouse.Warehouse, table string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, wh.Exec(ctx, `CREATE TABLE `+table+` (
		tpep_pickup_datetime TIMESTAMP,
		tpep_dropoff_datetime TIMESTAMP,
		passenger_count BIGINT,
		trip_distance DOUBLE
	)`))
	require.NoError(t, wh.Exec(ctx, `INSERT INTO `+table+` VALUES
		('2024-01-05 08:00:00', '2024-01-05 08:30:00', 1, 5.0),   -- valid
		('2024-01-05 08:00:00', '2024-01-05 08:30:00', 1, 5.0),   -- exact duplicate
		('2024-01-06 09:00:00', '2024-01-06 09:20:00', 0, 3.0),   -- zero passengers
		('2024-01-07 10:00:00', '2024-01-07 10:40:00', 2, 150.0), -- over-distance
		('2024-01-08 11:00:00', '2024-01-08 11:10:00', 1, 0.0),   -- zero distance
		('2024-01-09 12:00:00', '2024-01-10 13:00:00', 1, 8.0),   -- 25h duration
		('2024-01-10 14:00:00', '2024-01-10 14:00:00', 1, 2.0),   -- zero duration
		(NULL, '2024-01-11 15:00:00', 1, 4.0)                     -- null pickup
	`))
}

func TestCleanPeriodFullChain(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.January}
	seedRawTable(t, wh, p.TableName())

	units := cleaner.CleanPeriod(ctx, p)

	// dedupe + normalize + three filter stages
	require.Len(t, units, 5)
	for _, u := range units {
		require.Equal(t, "success", string(u.Status), "stage %s should succeed", u.Stage)
	}

	byStage := map[string]int64{}
	for _, u := range units {
		byStage[u.Stage] = u.Rows
	}
	require.EqualValues(t, 1, byStage["dedupe"], "one exact duplicate collapses")
	require.EqualValues(t, 1, byStage["passenger_count"])
	require.EqualValues(t, 2, byStage["trip_distance"], "zero and over-distance rows")
	require.EqualValues(t, 3, byStage["trip_duration"], "zero, 25h, and null-timestamp rows")

	var remaining int64
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.StagingTableName()).Scan(&remaining))
	require.EqualValues(t, 1, remaining, "only the valid trip survives")
}

func TestCleanPeriodIdempotent(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.February}
	seedRawTable(t, wh, p.TableName())

	cleaner.CleanPeriod(ctx, p)

	var afterFirst int64
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.StagingTableName()).Scan(&afterFirst))

	// Second pass removes nothing.
	units := cleaner.CleanPeriod(ctx, p)
	for _, u := range units {
		require.Equal(t, "success", string(u.Status), "stage %s", u.Stage)
		require.Zero(t, u.Rows, "stage %s removed rows on a clean batch", u.Stage)
	}

	var afterSecond int64
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.StagingTableName()).Scan(&afterSecond))
	require.Equal(t, afterFirst, afterSecond)
}

func TestCleanPeriodFiltersPublishedStaging(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.April}
	seedRawTable(t, wh, p.TableName())
	cleaner.CleanPeriod(ctx, p)

	// A dirty row slipped into the published staging table. The next pass
	// must filter the published table, not rebuild it from raw.
	require.NoError(t, wh.Exec(ctx, `INSERT INTO `+p.StagingTableName()+` VALUES
		('2024-04-02 08:00:00', '2024-04-02 08:30:00', 0, 5.0, 'yellow')`))

	units := cleaner.CleanPeriod(ctx, p)
	byStage := map[string]int64{}
	for _, u := range units {
		require.Equal(t, "success", string(u.Status), "stage %s", u.Stage)
		byStage[u.Stage] = u.Rows
	}
	require.EqualValues(t, 1, byStage["passenger_count"], "only the injected row is removed")
	require.Zero(t, byStage["trip_distance"])
	require.Zero(t, byStage["trip_duration"])

	var remaining int64
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.StagingTableName()).Scan(&remaining))
	require.EqualValues(t, 1, remaining)
}

func TestCleanPeriodRebuildsNonCanonicalStaging(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.July}
	seedRawTable(t, wh, p.TableName())

	// A stale staging table in the wrong shape is not trusted.
	require.NoError(t, wh.Exec(ctx, `CREATE TABLE `+p.StagingTableName()+` (junk INTEGER)`))

	units := cleaner.CleanPeriod(ctx, p)
	require.Len(t, units, 5)
	for _, u := range units {
		require.Equal(t, "success", string(u.Status), "stage %s", u.Stage)
	}

	cols, err := wh.Columns(ctx, p.StagingTableName())
	require.NoError(t, err)
	require.Equal(t, []string{"pickup_ts", "dropoff_ts", "passenger_count", "trip_distance_mi", "vehicle_category"}, cols)

	var remaining int64
	require.NoError(t, wh.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.StagingTableName()).Scan(&remaining))
	require.EqualValues(t, 1, remaining)
}

func TestCleanPeriodMissingRawTable(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryGreen, Year: 2024, Month: time.May}
	units := cleaner.CleanPeriod(ctx, p)

	require.Len(t, units, 1)
	require.Equal(t, "skipped", string(units[0].Status))
	require.Contains(t, units[0].Reason, "missing")
}

func TestCleanPeriodSchemaMismatchExcludesBatch(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.June}
	require.NoError(t, wh.Exec(ctx, `CREATE TABLE `+p.TableName()+` (some_col INTEGER)`))
	require.NoError(t, wh.Exec(ctx, `INSERT INTO `+p.TableName()+` VALUES (1)`))

	units := cleaner.CleanPeriod(ctx, p)

	// dedupe runs against the raw table, then normalization is skipped
	// and the filter stages never run.
	require.Len(t, units, 2)
	require.Equal(t, "dedupe", units[0].Stage)
	require.Equal(t, "normalize", units[1].Stage)
	require.Equal(t, "skipped", string(units[1].Status))
	require.Contains(t, units[1].Reason, "schema mismatch")

	exists, err := wh.TableExists(ctx, p.StagingTableName())
	require.NoError(t, err)
	require.False(t, exists, "mismatched batch must not produce a staging table")
}

func TestVerifyCleanTables(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.January}
	seedRawTable(t, wh, p.TableName())
	cleaner.CleanPeriod(ctx, p)

	require.NoError(t, wh.Exec(ctx, `CREATE TABLE vehicle_emissions (
		vehicle_type VARCHAR, co2_grams_per_mile DOUBLE, vehicle_year_avg INTEGER
	)`))
	require.NoError(t, wh.Exec(ctx, `INSERT INTO vehicle_emissions VALUES
		('yellow_taxi', 400.0, 2015), ('green_taxi', 380.0, 2016)`))

	findings, err := cleaner.Verify(ctx, []trips.Period{p})
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestVerifyReportsViolations(t *testing.T) {
	ctx := context.Background()
	wh := openTestWarehouse(t)
	cleaner := NewCleaner(wh, testutil.NewTestLogger(t))

	p := trips.Period{Category: trips.CategoryYellow, Year: 2024, Month: time.March}

	// Staging table seeded directly with dirty rows, as if a filter had
	// been skipped.
	require.NoError(t, wh.Exec(ctx, `CREATE TABLE `+p.StagingTableName()+` (
		pickup_ts TIMESTAMP, dropoff_ts TIMESTAMP,
		passenger_count BIGINT, trip_distance_mi DOUBLE, vehicle_category VARCHAR
	)`))
	require.NoError(t, wh.Exec(ctx, `INSERT INTO `+p.StagingTableName()+` VALUES
		('2024-03-01 08:00:00', '2024-03-01 08:30:00', 0, 5.0, 'yellow'),
		('2024-03-01 09:00:00', '2024-03-01 09:30:00', 1, 500.0, 'yellow')`))

	findings, err := cleaner.Verify(ctx, []trips.Period{p})
	require.NoError(t, err)

	checks := map[string]bool{}
	for _, f := range findings {
		checks[f.Check] = true
	}
	require.True(t, checks["passenger_count"])
	require.True(t, checks["trip_distance"])
	// No vehicle_emissions table in this warehouse.
	require.True(t, checks["present"])
}
