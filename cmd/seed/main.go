// Command seed imports recurring templates from a YAML file and generates their
// occurrences.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/session-scheduler/internal/bootstrap"
	"github.com/example/session-scheduler/internal/config"
	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/seed"
)

func main() {
	path := flag.String("file", "templates.yaml", "YAML file listing the templates to create")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)

	report, err := run(ctx, cfg, *path, logger)
	logger.Info("seed finished", "created", report.Created, "failed", report.Failed, "occurrences", report.Occurrences)
	if err != nil {
		logger.Error("seed incomplete", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) (seed.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return seed.Report{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	file, err := seed.Parse(f)
	if err != nil {
		return seed.Report{}, err
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return seed.Report{}, err
	}
	defer store.Close()

	service, err := bootstrap.NewSessionService(cfg, store, bootstrap.Telemetry{}, logger)
	if err != nil {
		return seed.Report{}, err
	}
	return seed.Apply(ctx, service, file, logger)
}
