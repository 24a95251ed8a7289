package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayla-hekim/ds3022-data-project-1/internal/warehouse"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the warehouse directly",
		Long: `Run ad-hoc SQL against the warehouse.

Inspect raw monthly tables, cleaned staging tables, the vehicle
emission factors, and the published trip_emissions table. Supports
multiple output formats for scripting.

When invoked without arguments on a terminal, enters interactive
REPL mode.`,
		Example: `  # Execute SQL directly
  tripco2 query "SELECT COUNT(*) FROM trip_emissions"

  # List tables
  tripco2 query tables

  # Show a table's columns
  tripco2 query schema trip_emissions

  # Output as JSON
  tripco2 query "SELECT * FROM vehicle_emissions" --format json

  # Interactive mode
  tripco2 query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	ctx := cmd.Context()
	cfg := getConfig(cmd)

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, opts)
	}

	wh, err := openWarehouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	return executeAndRenderQuery(ctx, cmd, wh, sqlQuery, opts.Format)
}

func executeAndRenderQuery(ctx context.Context, cmd *cobra.Command, wh warehouse.Warehouse, query, format string) error {
	rows, err := wh.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows.Rows, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wh, err := openWarehouse(ctx, getConfig(cmd))
			if err != nil {
				return err
			}
			defer wh.Close()
			return executeAndRenderQuery(ctx, cmd, wh, tablesQuery, opts.Format)
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show a table's columns and types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wh, err := openWarehouse(ctx, getConfig(cmd))
			if err != nil {
				return err
			}
			defer wh.Close()
			return showSchema(ctx, cmd, wh, args[0], opts.Format)
		},
	}
}

const tablesQuery = `
	SELECT table_name, table_type
	FROM information_schema.tables
	WHERE table_schema IN ('main', 'public')
	ORDER BY table_name`

func showSchema(ctx context.Context, cmd *cobra.Command, wh warehouse.Warehouse, tbl, format string) error {
	rows, err := wh.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, tbl)
	if err != nil {
		return fmt.Errorf("schema query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows.Rows, format)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
