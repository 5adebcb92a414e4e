// Package bootstrap turns a loaded Config into the storage backend and SessionService
// shared by the scheduler binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/config"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/persistence/postgres"
	"github.com/example/session-scheduler/internal/persistence/sqlite"
	"github.com/example/session-scheduler/internal/recurrence"
)

// OpenStore opens the backend named by cfg.StorageDriver. SQLite databases are migrated
// on open; Postgres schemas are managed by cmd/migrate.
func OpenStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
}

// Telemetry is the pair of providers instruments are built from. Nil members fall back
// to the global providers.
type Telemetry struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
}

// NewSessionService wires a SessionService over store with random UUID identifiers and
// the engine, sync policy and concurrency from cfg.
func NewSessionService(cfg config.Config, store persistence.Store, tel Telemetry, logger *slog.Logger) (*application.SessionService, error) {
	siblings, err := application.ParseDateScope(cfg.SiblingScope)
	if err != nil {
		return nil, err
	}
	children, err := application.ParseDateScope(cfg.TemplateScope)
	if err != nil {
		return nil, err
	}
	instruments, err := application.NewInstruments(tel.Tracer, tel.Meter)
	if err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	return application.NewSessionService(store, store, application.SessionServiceConfig{
		Engine:          recurrence.NewEngine(cfg.Location, cfg.HorizonDays, cfg.MaxOccurrences),
		SyncPolicy:      application.SyncPolicy{Siblings: siblings, Children: children},
		SyncConcurrency: cfg.SyncConcurrency,
		IDGenerator:     uuid.NewString,
		Logger:          logger,
		Instruments:     instruments,
	}), nil
}
