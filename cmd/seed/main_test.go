package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/session-scheduler/internal/config"
)

func TestRunSeedsSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	doc := "templates:\n" +
		"  - name: Short run\n" +
		"    repeat_type: daily\n" +
		"    session_date: 2025-01-01\n" +
		"    repeat_end_date: 2025-01-04\n" +
		"    created_by: ops\n" +
		"    item_ids: [sku-1]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	cfg := config.Config{
		StorageDriver:   config.DriverSQLite,
		SQLitePath:      filepath.Join(dir, "scheduler.db"),
		Location:        time.UTC,
		HorizonDays:     30,
		MaxOccurrences:  1000,
		SiblingScope:    "after_source",
		TemplateScope:   "all",
		SyncConcurrency: 2,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	report, err := run(context.Background(), cfg, path, logger)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Created != 1 || report.Occurrences != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := run(context.Background(), cfg, filepath.Join(dir, "missing.yaml"), logger); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
