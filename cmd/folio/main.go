package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"folio/internal/app"
	"folio/internal/cli"
	"folio/internal/config"
	"folio/internal/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Diagnostics go to stderr so --format json output stays clean
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	open := func(ctx context.Context) (*app.App, error) {
		return app.Open(ctx, cfg, metrics.NewMetrics(), logger)
	}

	if err := cli.NewRootCommand(cfg.Environment, open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
