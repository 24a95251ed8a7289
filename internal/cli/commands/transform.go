package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/derive"
)

// NewTransformCommand rebuilds the derived analysis table from the cleaned
// staging tables.
func NewTransformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Compute derived metrics and publish the analysis table",
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

			run, err := store.StartRun("transform")
			if err != nil {
				return fmt.Errorf("starting run: %w", err)
			}

			builder := derive.NewBuilder(wh, logger)
			units, buildErr := builder.Build(ctx, periods)

			finishRun(store, logger, run, units, buildErr)
			renderUnits(cmd.OutOrStdout(), units)
			return buildErr
		},
	}

	return cmd
}
