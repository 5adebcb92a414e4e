// Package config loads scheduler settings from SCHEDULER_* environment variables and an
// optional config file using Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers accepted by StorageDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures the settings shared by the scheduler binaries.
type Config struct {
	HTTPAddr        string
	StorageDriver   string
	SQLitePath      string
	PostgresDSN     string
	Location        *time.Location
	HorizonDays     int
	MaxOccurrences  int
	SiblingScope    string
	TemplateScope   string
	SyncConcurrency int
	// GenerateSchedule is a cron spec for the periodic generation run. Empty disables it.
	GenerateSchedule string
	GenerateTimeout  time.Duration
	LogLevel         string
	OTLPEndpoint     string
	OTLPInsecure     bool
	ServiceName      string
}

var defaults = map[string]any{
	"http_addr":         ":8080",
	"storage_driver":    DriverSQLite,
	"sqlite_path":       "scheduler.db",
	"postgres_dsn":      "",
	"timezone":          "UTC",
	"horizon_days":      "30",
	"max_occurrences":   "1000",
	"sibling_scope":     "after_source",
	"template_scope":    "all",
	"sync_concurrency":  "4",
	"generate_schedule": "",
	"generate_timeout":  "5m",
	"log_level":         "info",
	"otlp_endpoint":     "",
	"otlp_insecure":     "true",
	"service_name":      "session-scheduler",
}

var syncScopes = []string{"all", "after_source", "from_today"}

// Load reads SCHEDULER_CONFIG_FILE when set, then the environment, on top of defaults.
// Every missing or invalid value is reported at once.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEDULER")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path := strings.TrimSpace(v.GetString("config_file")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := Config{
		HTTPAddr:         get("http_addr"),
		StorageDriver:    strings.ToLower(get("storage_driver")),
		SQLitePath:       get("sqlite_path"),
		PostgresDSN:      get("postgres_dsn"),
		SiblingScope:     strings.ToLower(get("sibling_scope")),
		TemplateScope:    strings.ToLower(get("template_scope")),
		GenerateSchedule: get("generate_schedule"),
		LogLevel:         strings.ToLower(get("log_level")),
		OTLPEndpoint:     get("otlp_endpoint"),
		ServiceName:      get("service_name"),
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.HTTPAddr == "" {
		missing = append(missing, "SCHEDULER_HTTP_ADDR")
	}

	switch cfg.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			missing = append(missing, "SCHEDULER_SQLITE_PATH")
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, "SCHEDULER_POSTGRES_DSN")
		}
	default:
		invalid = append(invalid, "SCHEDULER_STORAGE_DRIVER")
	}

	if loc, err := time.LoadLocation(get("timezone")); err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	positive := func(key string, dst *int) {
		n, err := strconv.Atoi(get(key))
		if err != nil || n <= 0 {
			invalid = append(invalid, "SCHEDULER_"+strings.ToUpper(key))
			return
		}
		*dst = n
	}
	positive("horizon_days", &cfg.HorizonDays)
	positive("max_occurrences", &cfg.MaxOccurrences)
	positive("sync_concurrency", &cfg.SyncConcurrency)

	if !validScope(cfg.SiblingScope) {
		invalid = append(invalid, "SCHEDULER_SIBLING_SCOPE")
	}
	if !validScope(cfg.TemplateScope) {
		invalid = append(invalid, "SCHEDULER_TEMPLATE_SCOPE")
	}

	if timeout, err := time.ParseDuration(get("generate_timeout")); err != nil || timeout <= 0 {
		invalid = append(invalid, "SCHEDULER_GENERATE_TIMEOUT")
	} else {
		cfg.GenerateTimeout = timeout
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
	}

	if insecure, err := strconv.ParseBool(get("otlp_insecure")); err != nil {
		invalid = append(invalid, "SCHEDULER_OTLP_INSECURE")
	} else {
		cfg.OTLPInsecure = insecure
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: required settings are missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("config: invalid settings: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func validScope(value string) bool {
	for _, scope := range syncScopes {
		if value == scope {
			return true
		}
	}
	return false
}
