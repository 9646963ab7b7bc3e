// Package cli implements the folio maintenance command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"folio/internal/app"
)

// Opener builds the content engine for a command. Commands close what it returns.
type Opener func(ctx context.Context) (*app.App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Environment guards destructive commands
	Environment string

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the folio CLI.
func NewRootCommand(environment string, open Opener) *cobra.Command {
	opts := &RootOptions{Environment: environment, open: open}

	cmd := &cobra.Command{
		Use:   "folio",
		Short: "folio content engine maintenance",
		Long:  "Schema management and bulk jobs for the folio versioned-content engine.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDropTablesCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewExpireCommand(opts))
	cmd.AddCommand(NewEmptyBinCommand(opts))

	return cmd
}

// withEngine opens the engine, runs fn and closes it again
func (o *RootOptions) withEngine(ctx context.Context, fn func(*app.App) error) error {
	engine, err := o.open(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open content engine", err)
	}
	defer engine.Close()
	return fn(engine)
}
