// Package trips defines the shared domain types for the taxi emissions
// pipeline: vehicle categories, ingestion periods, and the analysis-table
// row shape.
package trips

import (
	"fmt"
	"strings"
	"time"
)

// Category is the taxi class partition. It selects both the raw source
// schema (timestamp column naming) and the emission-factor row.
type Category int

const (
	// CategoryYellow is the yellow medallion fleet (tpep_* timestamps).
	CategoryYellow Category = iota
	// CategoryGreen is the green street-hail fleet (lpep_* timestamps).
	CategoryGreen
)

// Categories lists all known categories in canonical order.
var Categories = []Category{CategoryYellow, CategoryGreen}

// ParseCategory converts a config/CLI string into a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yellow":
		return CategoryYellow, nil
	case "green":
		return CategoryGreen, nil
	default:
		return 0, fmt.Errorf("unknown vehicle category %q (want yellow or green)", s)
	}
}

// String returns the canonical lowercase name, used as the
// vehicle_category value in the analysis table and in table names.
func (c Category) String() string {
	switch c {
	case CategoryYellow:
		return "yellow"
	case CategoryGreen:
		return "green"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// EmissionsKey returns the vehicle_type key used by the emission-factor
// reference table ("yellow_taxi", "green_taxi").
func (c Category) EmissionsKey() string {
	return c.String() + "_taxi"
}

// Period identifies one month of raw trip data for one category.
type Period struct {
	Category Category
	Year     int
	Month    time.Month
}

// TableName returns the raw table name for the period, e.g. "yellow_2024_03".
// Names are derived from the typed fields only, never from caller strings.
func (p Period) TableName() string {
	return fmt.Sprintf("%s_%d_%02d", p.Category, p.Year, int(p.Month))
}

// StagingTableName returns the normalized staging table name for the period.
func (p Period) StagingTableName() string {
	return "stg_" + p.TableName()
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d-%02d", p.Category, p.Year, int(p.Month))
}

// PeriodsFor expands years x categories into all twelve months each.
func PeriodsFor(years []int, categories []Category) []Period {
	var periods []Period
	for _, year := range years {
		for _, cat := range categories {
			for m := time.January; m <= time.December; m++ {
				periods = append(periods, Period{Category: cat, Year: year, Month: m})
			}
		}
	}
	return periods
}

// YearRange is an inclusive range of calendar years used to bound
// aggregate queries on pickup_ts.
type YearRange struct {
	Start int
	End   int
}

// Bounds returns the half-open [start, end) timestamp window for the range,
// in the source-recorded local time (no timezone conversion).
func (r YearRange) Bounds() (time.Time, time.Time) {
	start := time.Date(r.Start, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(r.End+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, end
}

func (r YearRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// EmissionFactor is one row of the vehicle_emissions reference table.
type EmissionFactor struct {
	VehicleType     string
	CO2GramsPerMile float64
	VehicleYearAvg  int
}

// DerivedTrip is one row of the trip_emissions analysis table. TripCO2Kgs
// is nil when the trip's distance or emission factor was absent; such rows
// are excluded from every aggregate.
type DerivedTrip struct {
	PickupTS       time.Time
	DropoffTS      time.Time
	PassengerCount int64
	TripDistanceMi float64
	Category       Category
	HourOfDay      int
	DayOfWeek      int // 0 = Sunday .. 6 = Saturday
	WeekOfYear     int
	MonthOfYear    int
	AvgMPH         float64
	TripCO2Kgs     *float64
}

// DayNames maps DayOfWeek values to display names, Sun..Sat.
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// MonthNames maps 1-based MonthOfYear values to display names.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month(%d)", m)
	}
	return time.Month(m).String()
}
