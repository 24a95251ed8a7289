package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, DefaultWarehouseType, cfg.Warehouse.Type)
	require.Equal(t, DefaultWarehousePath, cfg.Warehouse.Path)
	require.Equal(t, DefaultStateFile, cfg.StatePath)
	require.Equal(t, DefaultEmissionsCSV, cfg.EmissionsCSV)
	require.Equal(t, DefaultDataDir, cfg.Source.DataDir)
	require.Equal(t, []int{2024}, cfg.Years)
	require.Equal(t, []string{"yellow", "green"}, cfg.Categories)
	require.False(t, cfg.Verbose)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
warehouse:
  type: duckdb
  path: /tmp/test.duckdb
source:
  data_dir: /tmp/raw
  concurrency: 8
years: [2023, 2024]
categories: [yellow]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tripco2.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "/tmp/test.duckdb", cfg.Warehouse.Path)
	require.Equal(t, "/tmp/raw", cfg.Source.DataDir)
	require.Equal(t, 8, cfg.Source.Concurrency)
	require.Equal(t, []int{2023, 2024}, cfg.Years)
	require.Equal(t, []string{"yellow"}, cfg.Categories)
	require.Equal(t, "tripco2.yaml", GetConfigFileUsed())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := "warehouse:\n  path: from-file.duckdb\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tripco2.yaml"), []byte(yaml), 0o644))
	t.Setenv("TRIPCO2_WAREHOUSE__PATH", "from-env.duckdb")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "from-env.duckdb", cfg.Warehouse.Path)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRIPCO2_WAREHOUSE__PATH", "from-env.duckdb")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--db", "from-flag.duckdb"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, "from-flag.duckdb", cfg.Warehouse.Path)
	// Unchanged flags never override lower layers.
	require.Equal(t, DefaultStateFile, cfg.StatePath)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("no-such.yaml", nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Warehouse:  WarehouseConfig{Type: "duckdb"},
		Years:      []int{2024},
		Categories: []string{"yellow"},
	}
	require.NoError(t, valid.Validate())

	noType := &Config{Years: []int{2024}}
	require.Error(t, noType.Validate())

	noYears := &Config{Warehouse: WarehouseConfig{Type: "duckdb"}}
	require.Error(t, noYears.Validate())

	badYear := &Config{Warehouse: WarehouseConfig{Type: "duckdb"}, Years: []int{1950}}
	require.Error(t, badYear.Validate())

	badCategory := &Config{
		Warehouse:  WarehouseConfig{Type: "duckdb"},
		Years:      []int{2024},
		Categories: []string{"fhv"},
	}
	require.Error(t, badCategory.Validate())
}

func TestParsedCategories(t *testing.T) {
	cfg := &Config{Categories: nil}
	cats, err := cfg.ParsedCategories()
	require.NoError(t, err)
	require.Equal(t, trips.Categories, cats, "empty means all categories")

	cfg = &Config{Categories: []string{"green", "green", "yellow"}}
	cats, err = cfg.ParsedCategories()
	require.NoError(t, err)
	require.Equal(t, []trips.Category{trips.CategoryGreen, trips.CategoryYellow}, cats, "duplicates collapse")
}

func TestPeriods(t *testing.T) {
	cfg := &Config{Years: []int{2024}, Categories: []string{"yellow"}}
	periods, err := cfg.Periods()
	require.NoError(t, err)
	require.Len(t, periods, 12)
	require.Equal(t, time.January, periods[0].Month)
}

func TestYearRange(t *testing.T) {
	cfg := &Config{Years: []int{2024, 2022, 2023}}
	r := cfg.YearRange()
	require.Equal(t, 2022, r.Start)
	require.Equal(t, 2024, r.End)
}
