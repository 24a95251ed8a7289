package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/ingest"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
)

// NewLoadCommand downloads monthly trip files and loads them plus the
// vehicle emission factors into the warehouse.
func NewLoadCommand() *cobra.Command {
	var skipEmissions bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Download trip data and load raw tables into the warehouse",
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

			run, err := store.StartRun("load")
			if err != nil {
				return fmt.Errorf("starting run: %w", err)
			}

			loader := &ingest.Loader{
				Client:      &http.Client{Timeout: 10 * time.Minute},
				URLTemplate: cfg.Source.URLTemplate,
				DataDir:     cfg.Source.DataDir,
				Concurrency: cfg.Source.Concurrency,
				Logger:      logger,
			}

			units, loadErr := loader.Run(ctx, wh, periods)
			if loadErr == nil && !skipEmissions {
				start := time.Now()
				emErr := ingest.LoadEmissionFactors(ctx, wh, cfg.EmissionsCSV, logger)
				unit := state.Unit{
					Stage:    "load",
					Name:     ingest.EmissionsTable,
					Status:   state.StatusSuccess,
					Duration: time.Since(start),
				}
				if emErr != nil {
					unit.Status = state.StatusFailed
					unit.Reason = emErr.Error()
				}
				units = append(units, unit)
				loadErr = emErr
			}

			finishRun(store, logger, run, units, loadErr)
			renderUnits(cmd.OutOrStdout(), units)
			return loadErr
		},
	}

	cmd.Flags().BoolVar(&skipEmissions, "skip-emissions", false, "skip loading the vehicle emission factors table")
	return cmd
}
