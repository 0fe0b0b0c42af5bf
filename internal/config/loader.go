package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/caarlos0/env/v11"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DB_URL")
	}
	cfg.Pipeline.Source = strings.ToLower(strings.TrimSpace(cfg.Pipeline.Source))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.NeedsDatabase() && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL (or DB_URL) is required unless PIPELINE_DRY_RUN uses the csv source")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Server.MaxWaitTime <= 0 {
		errs = append(errs, "SERVER_MAX_WAIT_TIME must be positive")
	}

	// Pipeline validation
	switch c.Pipeline.Source {
	case SourcePostgres:
		if c.Pipeline.DryRun {
			errs = append(errs, "PIPELINE_DRY_RUN requires PIPELINE_SOURCE=csv")
		}
	case SourceCSV:
		if c.Pipeline.CSVDir == "" {
			errs = append(errs, "PIPELINE_CSV_DIR is required when PIPELINE_SOURCE is csv")
		}
	default:
		errs = append(errs, fmt.Sprintf("PIPELINE_SOURCE (%q) must be one of: postgres, csv", c.Pipeline.Source))
	}
	if _, err := core.ParsePolicy(c.Pipeline.Policy); err != nil {
		errs = append(errs, fmt.Sprintf("PIPELINE_REJECTION_POLICY (%q) must be one of: first, exhaustive", c.Pipeline.Policy))
	}
	for _, s := range []struct{ name, value string }{
		{"PIPELINE_BRONZE_SCHEMA", c.Pipeline.BronzeSchema},
		{"PIPELINE_SILVER_SCHEMA", c.Pipeline.SilverSchema},
		{"PIPELINE_AUDIT_SCHEMA", c.Pipeline.AuditSchema},
		{"PIPELINE_GOLD_SCHEMA", c.Pipeline.GoldSchema},
	} {
		if strings.TrimSpace(s.value) == "" {
			errs = append(errs, s.name+" must not be empty")
		}
	}
	if c.Pipeline.RunTimeout <= 0 {
		errs = append(errs, "PIPELINE_RUN_TIMEOUT must be positive")
	}

	// Tracing validation
	if c.Tracing.Enabled && c.Tracing.Endpoint != "" {
		if u, err := url.Parse(c.Tracing.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("OTEL_ENDPOINT (%q) must be an http(s) URL", c.Tracing.Endpoint))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, MaxConcurrentRuns: %d}, ",
		c.Server.Host, c.Server.Port, c.Server.MaxConcurrentRuns))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Pipeline: {Source: %q, Policy: %q, StrictDelivery: %v, Gold: %v, DryRun: %v}, ",
		c.Pipeline.Source, c.Pipeline.Policy, c.Pipeline.StrictDelivery, c.Pipeline.Gold, c.Pipeline.DryRun))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
