package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/config"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StorageDriver:   config.DriverSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "scheduler.db"),
		Location:        time.UTC,
		HorizonDays:     30,
		MaxOccurrences:  1000,
		SiblingScope:    "after_source",
		TemplateScope:   "all",
		SyncConcurrency: 2,
		GenerateTimeout: time.Minute,
		ServiceName:     "session-scheduler",
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory driver is rejected", func(t *testing.T) {
		t.Parallel()
		cfg := sqliteConfig(t)
		cfg.StorageDriver = config.DriverMemory
		if err := run(context.Background(), cfg, true, logger); err == nil {
			t.Fatal("expected an error for the memory driver")
		}
	})

	t.Run("once runs a single batch", func(t *testing.T) {
		t.Parallel()
		if err := run(context.Background(), sqliteConfig(t), true, logger); err != nil {
			t.Fatalf("run: %v", err)
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()
		cfg := sqliteConfig(t)
		cfg.GenerateSchedule = "every now and then"
		if err := run(context.Background(), cfg, false, logger); err == nil {
			t.Fatal("expected a cron parse error")
		}
	})
}
