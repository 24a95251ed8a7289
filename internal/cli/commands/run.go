package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/clean"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/derive"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/ingest"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
)

// NewRunCommand executes the whole pipeline in order: load, clean,
// transform, then the analysis report.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: load, clean, transform, analyze",
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

			run, err := store.StartRun("pipeline")
			if err != nil {
				return fmt.Errorf("starting run: %w", err)
			}

			var units []state.Unit
			pipelineErr := func() error {
				loader := &ingest.Loader{
					Client:      &http.Client{Timeout: 10 * time.Minute},
					URLTemplate: cfg.Source.URLTemplate,
					DataDir:     cfg.Source.DataDir,
					Concurrency: cfg.Source.Concurrency,
					Logger:      logger,
				}
				loadUnits, err := loader.Run(ctx, wh, periods)
				units = append(units, loadUnits...)
				if err != nil {
					return err
				}

				start := time.Now()
				err = ingest.LoadEmissionFactors(ctx, wh, cfg.EmissionsCSV, logger)
				unit := state.Unit{
					Stage:    "load",
					Name:     ingest.EmissionsTable,
					Status:   state.StatusSuccess,
					Duration: time.Since(start),
				}
				if err != nil {
					unit.Status = state.StatusFailed
					unit.Reason = err.Error()
				}
				units = append(units, unit)
				if err != nil {
					return err
				}

				cleaner := clean.NewCleaner(wh, logger)
				for _, p := range periods {
					units = append(units, cleaner.CleanPeriod(ctx, p)...)
				}

				builder := derive.NewBuilder(wh, logger)
				buildUnits, err := builder.Build(ctx, periods)
				units = append(units, buildUnits...)
				return err
			}()

			finishRun(store, logger, run, units, pipelineErr)
			renderUnits(cmd.OutOrStdout(), units)
			if pipelineErr != nil {
				return pipelineErr
			}

			cats, err := cfg.ParsedCategories()
			if err != nil {
				return err
			}
			return runAnalysis(cmd, wh, logger, cats, cfg.YearRange())
		},
	}

	return cmd
}
