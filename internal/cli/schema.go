package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/app"
	"folio/internal/repository/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the content tables for this environment",
		Long: `Create the node, version, snapshot and audit tables under the environment's table
prefix and seed the root and recycle bin nodes. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd.Context(), func(engine *app.App) error {
				if engine.Pool == nil {
					return NewExitError(ExitCommandError, "migrate requires DATABASE_URL")
				}
				if err := postgres.Migrate(cmd.Context(), engine.Pool, engine.Tables, engine.Logger()); err != nil {
					return WrapExitError(ExitCommandError, "migrate", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema ready (nodes table %s)\n", engine.Tables.Nodes)
				return nil
			})
		},
	}
}

// NewDropTablesCommand creates the drop-tables command.
func NewDropTablesCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop-tables",
		Short: "Drop the content tables for this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// SAFETY: Prevent destructive operations in production
			if opts.Environment == "prod" {
				return NewExitError(ExitCommandError, "refusing to drop tables in prod")
			}
			if !yes {
				return NewExitError(ExitCommandError, "drop-tables deletes all content; pass --yes to confirm")
			}
			return opts.withEngine(cmd.Context(), func(engine *app.App) error {
				if engine.Pool == nil {
					return NewExitError(ExitCommandError, "drop-tables requires DATABASE_URL")
				}
				if err := postgres.DropAll(cmd.Context(), engine.Pool, engine.Tables); err != nil {
					return WrapExitError(ExitCommandError, "drop tables", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "tables dropped")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all content tables")
	return cmd
}
