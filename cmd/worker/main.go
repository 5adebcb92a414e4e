// Command worker runs periodic occurrence generation without the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/session-scheduler/internal/bootstrap"
	"github.com/example/session-scheduler/internal/config"
	"github.com/example/session-scheduler/internal/jobs"
	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/telemetry"
)

// defaultSchedule runs generation shortly after midnight when no schedule is configured.
const defaultSchedule = "5 0 * * *"

func main() {
	once := flag.Bool("once", false, "run a single generation batch and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)

	if err := run(ctx, cfg, *once, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, once bool, logger *slog.Logger) error {
	if cfg.StorageDriver == config.DriverMemory {
		return errors.New("the worker needs a persistent storage driver")
	}

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName+"-worker", cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := bootstrap.NewSessionService(cfg, store, bootstrap.Telemetry{
		Tracer: providers.TracerProvider,
		Meter:  providers.MeterProvider,
	}, logger)
	if err != nil {
		return err
	}

	job := jobs.NewGeneration(service, cfg.GenerateTimeout, logger)
	if once {
		job.Run(ctx)
		return nil
	}

	spec := cfg.GenerateSchedule
	if spec == "" {
		spec = defaultSchedule
	}
	scheduler, err := jobs.Schedule(ctx, job, spec, cfg.Location)
	if err != nil {
		return err
	}
	scheduler.Start()
	logger.Info("generation worker started", "schedule", spec, "timezone", cfg.Location.String())

	<-ctx.Done()
	logger.Info("generation worker stopping")
	<-scheduler.Stop().Done()
	return nil
}
