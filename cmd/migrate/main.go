// Command migrate applies or reverts the schema of the configured SQL backend.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/session-scheduler/internal/config"
	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/persistence/postgres"
	"github.com/example/session-scheduler/internal/persistence/sqlite"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)

	if err := migrate(cfg, *direction); err != nil {
		logger.Error("migration failed", "driver", cfg.StorageDriver, "direction", *direction, "error", err)
		os.Exit(1)
	}
	logger.Info("migration complete", "driver", cfg.StorageDriver, "direction", *direction)
}

func migrate(cfg config.Config, direction string) error {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return sqlite.Run(cfg.SQLitePath, direction)
	case config.DriverPostgres:
		return postgres.Run(cfg.PostgresDSN, direction)
	}
	return fmt.Errorf("storage driver %q has no schema to migrate", cfg.StorageDriver)
}
