package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/clean"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
)

// NewCleanCommand runs the dedupe, normalize, and filter chain over every
// raw monthly table in scope.
func NewCleanCommand() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Deduplicate, normalize, and filter raw trip tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := getConfig(cmd)
			logger := getLogger(cmd)

			periods, err := cfg.Periods()
			if err != nil {
				return err
			}

			wh, err := openWarehouse(ctx, cfg)
			if err != nil {
				return err
			}
			defer wh.Close()

			store, err := openState(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.StartRun("clean")
			if err != nil {
				return fmt.Errorf("starting run: %w", err)
			}

			cleaner := clean.NewCleaner(wh, logger)

			var units []state.Unit
			for _, p := range periods {
				units = append(units, cleaner.CleanPeriod(ctx, p)...)
			}

			var runErr error
			if verify {
				findings, err := cleaner.Verify(ctx, periods)
				if err != nil {
					runErr = fmt.Errorf("verifying cleaned tables: %w", err)
				} else if len(findings) > 0 {
					for _, f := range findings {
						logger.Error("verification finding", "table", f.Table, "check", f.Check, "detail", f.Detail)
					}
					runErr = fmt.Errorf("verification found %d issue(s)", len(findings))
				}
			}

			finishRun(store, logger, run, units, runErr)
			renderUnits(cmd.OutOrStdout(), units)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "re-check filter invariants after cleaning")
	return cmd
}
