// Package commands implements the tripco2 subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/cli/config"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/state"
	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the command context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the run logger in the command context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// getConfig returns the config stored by the root command.
func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

// getLogger returns the logger stored by the root command.
func getLogger(cmd *cobra.Command) *slog.Logger {
	if logger, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// openWarehouse acquires the store handle for one command invocation.
// The caller closes it when the command finishes.
func openWarehouse(ctx context.Context, cfg *config.Config) (warehouse.Warehouse, error) {
	wh, err := warehouse.Open(ctx, warehouse.Config{
		Type: cfg.Warehouse.Type,
		Path: cfg.Warehouse.Path,
		DSN:  cfg.Warehouse.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return wh, nil
}

// openState opens the run-history store, creating its directory first.
func openState(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = config.DefaultStateFile
	}
	if dir := filepath.Dir(statePath); dir != "." && dir != "" && statePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(statePath); err != nil {
		return nil, err
	}
	return store, nil
}

// finishRun records the units and the final status of one phase run.
// Recording failures are logged, not propagated; history must never
// fail the pipeline itself.
func finishRun(store state.Store, logger *slog.Logger, run *state.Run, units []state.Unit, runErr error) {
	if store == nil || run == nil {
		return
	}
	if err := store.RecordUnits(run.ID, units); err != nil {
		logger.Warn("failed to record run units", "run_id", run.ID, "error", err)
	}
	status := state.StatusSuccess
	errMsg := ""
	if runErr != nil {
		status = state.StatusFailed
		errMsg = runErr.Error()
	}
	if err := store.CompleteRun(run.ID, status, errMsg); err != nil {
		logger.Warn("failed to complete run", "run_id", run.ID, "error", err)
	}
}
