package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/app"
	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
)

type job func(ctx context.Context, engine *app.App) (*contentSvc.BatchResult, error)

func newJobCommand(opts *RootOptions, use, short, long string, run job) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd.Context(), func(engine *app.App) error {
				if opts.Verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "running %s\n", use)
				}
				result, err := run(cmd.Context(), engine)
				if err != nil {
					return WrapExitError(ExitCommandError, use, err)
				}
				return writeBatch(cmd.OutOrStdout(), opts.Format, use, result)
			})
		},
	}
}

// NewRebuildCommand creates the rebuild-xml command.
func NewRebuildCommand(opts *RootOptions) *cobra.Command {
	return newJobCommand(opts, "rebuild-xml",
		"Regenerate every document snapshot",
		`Delete every document snapshot and render one for each published node.
A node that fails to render is reported and the rebuild continues.`,
		func(ctx context.Context, engine *app.App) (*contentSvc.BatchResult, error) {
			return engine.Snapshots.RebuildAll(ctx)
		})
}

// NewReleaseCommand creates the release command.
func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	return newJobCommand(opts, "release",
		"Publish content whose release date has passed",
		"Run one release scan, the same one the server scheduler runs on its interval.",
		func(ctx context.Context, engine *app.App) (*contentSvc.BatchResult, error) {
			return engine.Scheduler.ReleaseDue(ctx)
		})
}

// NewExpireCommand creates the expire command.
func NewExpireCommand(opts *RootOptions) *cobra.Command {
	return newJobCommand(opts, "expire",
		"Unpublish content whose expire date has passed",
		"Run one expiration scan, the same one the server scheduler runs on its interval.",
		func(ctx context.Context, engine *app.App) (*contentSvc.BatchResult, error) {
			return engine.Scheduler.ExpireDue(ctx)
		})
}

// NewEmptyBinCommand creates the empty-bin command.
func NewEmptyBinCommand(opts *RootOptions) *cobra.Command {
	return newJobCommand(opts, "empty-bin",
		"Permanently delete everything in the recycle bin",
		"Delete every node below the recycle bin, including versions, snapshots and uploaded files.",
		func(ctx context.Context, engine *app.App) (*contentSvc.BatchResult, error) {
			return engine.Lifecycle.EmptyRecycleBin(ctx, models.SystemActor)
		})
}
