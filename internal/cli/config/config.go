// Package config provides configuration for the tripco2 CLI.
package config

import (
	"fmt"
	"slices"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
)

// WarehouseConfig selects and locates the analytical store.
type WarehouseConfig struct {
	Type string `koanf:"type"`
	Path string `koanf:"path"`
	DSN  string `koanf:"dsn"`
}

// SourceConfig describes where raw trip batches come from.
type SourceConfig struct {
	// URLTemplate with {category}, {year}, {month} placeholders; empty
	// uses the TLC mirror default.
	URLTemplate string `koanf:"url_template"`
	// DataDir holds downloaded parquet files.
	DataDir string `koanf:"data_dir"`
	// Concurrency bounds parallel downloads.
	Concurrency int `koanf:"concurrency"`
}

// Config holds all CLI configuration options.
type Config struct {
	Warehouse    WarehouseConfig `koanf:"warehouse"`
	Source       SourceConfig    `koanf:"source"`
	StatePath    string          `koanf:"state_path"`
	EmissionsCSV string          `koanf:"emissions_csv"`
	Years        []int           `koanf:"years"`
	Categories   []string        `koanf:"categories"`
	Verbose      bool            `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultWarehouseType = "duckdb"
	DefaultWarehousePath = "emissions.duckdb"
	DefaultStateFile     = ".tripco2/state.db"
	DefaultEmissionsCSV  = "data/vehicle_emissions.csv"
	DefaultDataDir       = "data/raw"
)

// Validate checks the configuration for values no command could use.
func (c *Config) Validate() error {
	if c.Warehouse.Type == "" {
		return fmt.Errorf("warehouse.type is required")
	}
	if len(c.Years) == 0 {
		return fmt.Errorf("at least one year is required")
	}
	for _, y := range c.Years {
		if y < 2009 || y > 2100 {
			return fmt.Errorf("year %d out of range", y)
		}
	}
	if _, err := c.ParsedCategories(); err != nil {
		return err
	}
	return nil
}

// ParsedCategories returns the configured categories as domain values.
func (c *Config) ParsedCategories() ([]trips.Category, error) {
	if len(c.Categories) == 0 {
		return slices.Clone(trips.Categories), nil
	}
	cats := make([]trips.Category, 0, len(c.Categories))
	for _, s := range c.Categories {
		cat, err := trips.ParseCategory(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(cats, cat) {
			cats = append(cats, cat)
		}
	}
	return cats, nil
}

// Periods expands the configured years and categories into every
// ingestion period.
func (c *Config) Periods() ([]trips.Period, error) {
	cats, err := c.ParsedCategories()
	if err != nil {
		return nil, err
	}
	return trips.PeriodsFor(c.Years, cats), nil
}

// YearRange returns the inclusive range spanned by the configured years.
func (c *Config) YearRange() trips.YearRange {
	r := trips.YearRange{Start: c.Years[0], End: c.Years[0]}
	for _, y := range c.Years[1:] {
		if y < r.Start {
			r.Start = y
		}
		if y > r.End {
			r.End = y
		}
	}
	return r
}
