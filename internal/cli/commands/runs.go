package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRunsCommand lists pipeline run history from the state store.
func NewRunsCommand() *cobra.Command {
	var limit int
	var showUnits bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd)
			logger := getLogger(cmd)
			out := cmd.OutOrStdout()

			store, err := openState(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run ID", "Phase", "Status", "Started", "Completed", "Error"})
			for _, r := range runs {
				completed := ""
				if r.CompletedAt != nil {
					completed = r.CompletedAt.Format("2006-01-02 15:04:05")
				}
				t.AppendRow(table.Row{
					r.ID, r.Phase, string(r.Status),
					r.StartedAt.Format("2006-01-02 15:04:05"),
					completed, r.Error,
				})
			}
			t.Render()

			if !showUnits {
				return nil
			}
			for _, r := range runs {
				units, err := store.UnitsForRun(r.ID)
				if err != nil {
					return fmt.Errorf("listing units for run %s: %w", r.ID, err)
				}
				if len(units) == 0 {
					continue
				}
				fmt.Fprintf(out, "\nrun %s:\n", r.ID)
				renderUnits(out, units)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of runs to list")
	cmd.Flags().BoolVar(&showUnits, "units", false, "show per-unit results for each run")
	return cmd
}
