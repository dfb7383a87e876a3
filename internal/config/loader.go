package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"maudeflow/internal/db"
)

// Config is the full application configuration, loaded from an optional
// config.yaml plus environment overrides.
type Config struct {
	Database db.Config
	Ingest   IngestConfig
	Audit    AuditConfig
	Download DownloadConfig
	Logging  LoggingConfig
}

// IngestConfig tunes the parse/transform/load pipeline.
type IngestConfig struct {
	BatchSize           int
	TransactionSafety   string // "strict" or "best-effort"
	ReferentialFilter   bool
	ProductCodes        []string
	RejectUnknownSchema bool
}

// Strict reports whether batch failures should fail the file.
func (c IngestConfig) Strict() bool {
	return c.TransactionSafety == "strict"
}

// AuditConfig tunes the integrity auditor's thresholds.
type AuditConfig struct {
	MinRows          map[string]int64
	MaxOrphanPercent float64
	ImportantColumns map[string][]string
	MinCompleteness  float64
}

// DownloadConfig tunes the release-file fetcher.
type DownloadConfig struct {
	BaseURL     string
	Dir         string
	MaxParallel int
	MaxAttempts int
	Timeout     time.Duration
}

// LoggingConfig selects the logger setup.
type LoggingConfig struct {
	Level string
}

// Load reads config.yaml from the given path, falling back to defaults
// with environment overrides (MAUDEFLOW_DATABASE_HOST and so on).
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Ingest: IngestConfig{
			BatchSize:         10000,
			TransactionSafety: "best-effort",
			ReferentialFilter: true,
		},
		Audit: AuditConfig{
			MaxOrphanPercent: 5,
			MinCompleteness:  50,
		},
		Download: DownloadConfig{
			Dir:         "data",
			MaxParallel: 4,
			MaxAttempts: 3,
			Timeout:     5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("MAUDEFLOW")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("download.base_url")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		// No config.yaml: defaults plus env vars.
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("ingest.batch_size") {
		cfg.Ingest.BatchSize = v.GetInt("ingest.batch_size")
	}
	if v.IsSet("ingest.transaction_safety") {
		cfg.Ingest.TransactionSafety = v.GetString("ingest.transaction_safety")
	}
	if v.IsSet("ingest.referential_filter") {
		cfg.Ingest.ReferentialFilter = v.GetBool("ingest.referential_filter")
	}
	if v.IsSet("ingest.product_codes") {
		cfg.Ingest.ProductCodes = v.GetStringSlice("ingest.product_codes")
	}
	if v.IsSet("ingest.reject_unknown_schema") {
		cfg.Ingest.RejectUnknownSchema = v.GetBool("ingest.reject_unknown_schema")
	}

	if v.IsSet("audit.min_rows") {
		cfg.Audit.MinRows = make(map[string]int64)
		for table := range v.GetStringMap("audit.min_rows") {
			cfg.Audit.MinRows[table] = v.GetInt64("audit.min_rows." + table)
		}
	}
	if v.IsSet("audit.max_orphan_percent") {
		cfg.Audit.MaxOrphanPercent = v.GetFloat64("audit.max_orphan_percent")
	}
	if v.IsSet("audit.important_columns") {
		cfg.Audit.ImportantColumns = make(map[string][]string)
		for table := range v.GetStringMap("audit.important_columns") {
			cfg.Audit.ImportantColumns[table] = v.GetStringSlice("audit.important_columns." + table)
		}
	}
	if v.IsSet("audit.min_completeness_percent") {
		cfg.Audit.MinCompleteness = v.GetFloat64("audit.min_completeness_percent")
	}

	if v.IsSet("download.base_url") {
		cfg.Download.BaseURL = v.GetString("download.base_url")
	}
	if v.IsSet("download.dir") {
		cfg.Download.Dir = v.GetString("download.dir")
	}
	if v.IsSet("download.max_parallel") {
		cfg.Download.MaxParallel = v.GetInt("download.max_parallel")
	}
	if v.IsSet("download.max_attempts") {
		cfg.Download.MaxAttempts = v.GetInt("download.max_attempts")
	}
	if v.IsSet("download.timeout") {
		cfg.Download.Timeout = v.GetDuration("download.timeout")
	}

	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}

	if cfg.Ingest.TransactionSafety != "strict" && cfg.Ingest.TransactionSafety != "best-effort" {
		return cfg, fmt.Errorf("ingest.transaction_safety must be strict or best-effort, got %q", cfg.Ingest.TransactionSafety)
	}
	if cfg.Ingest.BatchSize <= 0 {
		return cfg, fmt.Errorf("ingest.batch_size must be positive, got %d", cfg.Ingest.BatchSize)
	}
	return cfg, nil
}

// ProductCodeSet converts the configured allow list into the loader's
// set form. Nil when no filter is configured.
func (c IngestConfig) ProductCodeSet() map[string]struct{} {
	if len(c.ProductCodes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.ProductCodes))
	for _, code := range c.ProductCodes {
		set[code] = struct{}{}
	}
	return set
}
