package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/analyze"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/trips"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// NewAnalyzeCommand reports the aggregate emissions answers for every
// configured vehicle category.
func NewAnalyzeCommand() *cobra.Command {
	var monthsCSV string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report largest trip, calendar extremes, and monthly totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := getConfig(cmd)
			logger := getLogger(cmd)

			cats, err := cfg.ParsedCategories()
			if err != nil {
				return err
			}
			years := cfg.YearRange()

			wh, err := openWarehouse(ctx, cfg)
			if err != nil {
				return err
			}
			defer wh.Close()

			engine := analyze.NewEngine(wh, logger)

			monthly := make(map[trips.Category][]analyze.MonthTotal, len(cats))
			for _, cat := range cats {
				if err := reportCategory(cmd, engine, cat, years, monthly); err != nil {
					return err
				}
			}

			if monthsCSV != "" {
				if err := writeMonthlyCSV(monthsCSV, cats, monthly); err != nil {
					return fmt.Errorf("writing monthly totals: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote monthly totals to %s\n", monthsCSV)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&monthsCSV, "months-csv", "", "write per-category monthly totals to a CSV file")
	return cmd
}

// runAnalysis prints the full report for each category. The run
// command shares it with analyze.
func runAnalysis(cmd *cobra.Command, wh warehouse.Warehouse, logger *slog.Logger, cats []trips.Category, years trips.YearRange) error {
	engine := analyze.NewEngine(wh, logger)
	monthly := make(map[trips.Category][]analyze.MonthTotal, len(cats))
	for _, cat := range cats {
		if err := reportCategory(cmd, engine, cat, years, monthly); err != nil {
			return err
		}
	}
	return nil
}

func reportCategory(cmd *cobra.Command, engine *analyze.Engine, cat trips.Category, years trips.YearRange, monthly map[trips.Category][]analyze.MonthTotal) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\n== %s taxi, %d-%d ==\n", cat, years.Start, years.End)

	trip, found, err := engine.LargestTrip(ctx, cat, years)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(out, "no qualifying trips")
		return nil
	}
	printLargestTrip(out, trip)

	for _, bucket := range analyze.Buckets {
		ext, found, err := engine.HeavyLight(ctx, bucket, cat, years)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		fmt.Fprintf(out, "heaviest %s: %s (avg %.4f kg CO2)\n", ext.Bucket, ext.Heaviest.Label, ext.Heaviest.MeanCO2Kgs)
		fmt.Fprintf(out, "lightest %s: %s (avg %.4f kg CO2)\n", ext.Bucket, ext.Lightest.Label, ext.Lightest.MeanCO2Kgs)
	}

	totals, err := engine.MonthlyTotals(ctx, cat, years)
	if err != nil {
		return err
	}
	monthly[cat] = totals
	printMonthlyTotals(out, totals)
	return nil
}

func printLargestTrip(w io.Writer, trip *trips.DerivedTrip) {
	fmt.Fprintf(w, "largest trip: %.4f kg CO2\n", *trip.TripCO2Kgs)
	fmt.Fprintf(w, "  pickup %s, dropoff %s\n",
		trip.PickupTS.Format("2006-01-02 15:04:05"),
		trip.DropoffTS.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  %.2f mi at %.1f mph, %d passenger(s)\n",
		trip.TripDistanceMi, trip.AvgMPH, trip.PassengerCount)
}

func printMonthlyTotals(w io.Writer, totals []analyze.MonthTotal) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Month", "Total CO2 (kg)"})
	for _, mt := range totals {
		t.AppendRow(table.Row{trips.MonthName(mt.Month), fmt.Sprintf("%.2f", mt.TotalCO2Kgs)})
	}
	t.Render()
}

// writeMonthlyCSV emits one row per month with a column per category,
// the shape plotting tools expect.
func writeMonthlyCSV(path string, cats []trips.Category, monthly map[trips.Category][]analyze.MonthTotal) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"month"}
	for _, cat := range cats {
		header = append(header, cat.String()+"_co2_kgs")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for m := 1; m <= 12; m++ {
		row := []string{trips.MonthName(m)}
		for _, cat := range cats {
			var total float64
			if series := monthly[cat]; len(series) == 12 {
				total = series[m-1].TotalCO2Kgs
			}
			row = append(row, strconv.FormatFloat(total, 'f', 4, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
