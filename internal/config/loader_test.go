package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var settingKeys = []string{
	"SCHEDULER_CONFIG_FILE",
	"SCHEDULER_HTTP_ADDR",
	"SCHEDULER_STORAGE_DRIVER",
	"SCHEDULER_SQLITE_PATH",
	"SCHEDULER_POSTGRES_DSN",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_HORIZON_DAYS",
	"SCHEDULER_MAX_OCCURRENCES",
	"SCHEDULER_SIBLING_SCOPE",
	"SCHEDULER_TEMPLATE_SCOPE",
	"SCHEDULER_SYNC_CONCURRENCY",
	"SCHEDULER_GENERATE_SCHEDULE",
	"SCHEDULER_GENERATE_TIMEOUT",
	"SCHEDULER_LOG_LEVEL",
	"SCHEDULER_OTLP_ENDPOINT",
	"SCHEDULER_OTLP_INSECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range settingKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != DriverSQLite || cfg.SQLitePath != "scheduler.db" {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.Location != time.UTC && cfg.Location.String() != "UTC" {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.HorizonDays != 30 || cfg.MaxOccurrences != 1000 || cfg.SyncConcurrency != 4 {
			t.Fatalf("unexpected numeric defaults: %+v", cfg)
		}
		if cfg.SiblingScope != "after_source" || cfg.TemplateScope != "all" {
			t.Fatalf("unexpected sync scopes: %s/%s", cfg.SiblingScope, cfg.TemplateScope)
		}
		if cfg.GenerateTimeout != 5*time.Minute || cfg.GenerateSchedule != "" {
			t.Fatalf("unexpected generation settings: %+v", cfg)
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_STORAGE_DRIVER", "Postgres")
		t.Setenv("SCHEDULER_POSTGRES_DSN", "postgres://localhost/scheduler")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")
		t.Setenv("SCHEDULER_HORIZON_DAYS", "14")
		t.Setenv("SCHEDULER_SIBLING_SCOPE", "from_today")
		t.Setenv("SCHEDULER_GENERATE_SCHEDULE", "0 5 * * *")
		t.Setenv("SCHEDULER_OTLP_INSECURE", "false")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.StorageDriver != DriverPostgres || cfg.PostgresDSN != "postgres://localhost/scheduler" {
			t.Fatalf("unexpected storage settings: %+v", cfg)
		}
		if cfg.Location.String() != "Asia/Tokyo" || cfg.HorizonDays != 14 {
			t.Fatalf("unexpected overrides: %+v", cfg)
		}
		if cfg.SiblingScope != "from_today" || cfg.GenerateSchedule != "0 5 * * *" || cfg.OTLPInsecure {
			t.Fatalf("unexpected overrides: %+v", cfg)
		}
	})

	t.Run("reports missing values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_STORAGE_DRIVER", "postgres")

		_, err := Load()
		if err == nil || err.Error() != "config: required settings are missing: SCHEDULER_POSTGRES_DSN" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
		t.Setenv("SCHEDULER_HORIZON_DAYS", "-1")
		t.Setenv("SCHEDULER_TEMPLATE_SCOPE", "sometimes")
		t.Setenv("SCHEDULER_GENERATE_TIMEOUT", "soon")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		for _, key := range []string{"SCHEDULER_TIMEZONE", "SCHEDULER_HORIZON_DAYS", "SCHEDULER_TEMPLATE_SCOPE", "SCHEDULER_GENERATE_TIMEOUT"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("reads a config file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "scheduler.yaml")
		content := "storage_driver: memory\nhorizon_days: 7\nlog_level: debug\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config file: %v", err)
		}
		t.Setenv("SCHEDULER_CONFIG_FILE", path)
		t.Setenv("SCHEDULER_HORIZON_DAYS", "10")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.StorageDriver != DriverMemory || cfg.LogLevel != "debug" {
			t.Fatalf("config file values not applied: %+v", cfg)
		}
		if cfg.HorizonDays != 10 {
			t.Fatalf("environment should override the file, got %d", cfg.HorizonDays)
		}
	})
}
