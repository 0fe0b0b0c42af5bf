// Package config provides centralized configuration management for the pipeline.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP trigger server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for active runs (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout is the middleware timeout for requests. Runs are synchronous,
	// so this should exceed PIPELINE_RUN_TIMEOUT (default: 15m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"15m"`

	// MaxConcurrentRuns caps parallel pipeline runs across requests (default: 1)
	MaxConcurrentRuns int `env:"SERVER_MAX_CONCURRENT_RUNS" envDefault:"1"`

	// MaxWaitTime is how long a request waits for a run slot (default: 5s)
	MaxWaitTime time.Duration `env:"SERVER_MAX_WAIT_TIME" envDefault:"5s"`

	// APIKeys guard POST /api/runs when non-empty (comma-separated)
	APIKeys []string `env:"SERVER_API_KEYS" envSeparator:","`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES" envSeparator:","`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. DB_URL is accepted as a fallback.
	URL string `env:"DATABASE_URL"`

	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
}

// PipelineConfig holds bronze to silver run settings.
type PipelineConfig struct {
	// Source selects the bronze provider: postgres or csv (default: postgres)
	Source string `env:"PIPELINE_SOURCE" envDefault:"postgres"`

	// CSVDir holds <table>.csv files when Source is csv
	CSVDir string `env:"PIPELINE_CSV_DIR" envDefault:"./data/bronze"`

	BronzeSchema string `env:"PIPELINE_BRONZE_SCHEMA" envDefault:"bronze"`
	SilverSchema string `env:"PIPELINE_SILVER_SCHEMA" envDefault:"silver"`
	AuditSchema  string `env:"PIPELINE_AUDIT_SCHEMA" envDefault:"audit"`
	GoldSchema   string `env:"PIPELINE_GOLD_SCHEMA" envDefault:"gold"`

	// StrictDelivery also requires deliver_date >= the latest accepted payment date
	StrictDelivery bool `env:"PIPELINE_STRICT_DELIVERY" envDefault:"false"`

	// Policy is the rejection policy: first or exhaustive (default: first)
	Policy string `env:"PIPELINE_REJECTION_POLICY" envDefault:"first"`

	// Gold toggles gold aggregation after the silver load (default: true)
	Gold bool `env:"PIPELINE_GOLD" envDefault:"true"`

	// ExportDir receives gold CSV files; empty disables the export
	ExportDir string `env:"PIPELINE_EXPORT_DIR"`

	// DryRun transforms without writing to Postgres. Requires the csv source.
	DryRun bool `env:"PIPELINE_DRY_RUN" envDefault:"false"`

	// RunTimeout bounds a single run (default: 10m)
	RunTimeout time.Duration `env:"PIPELINE_RUN_TIMEOUT" envDefault:"10m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// TracingConfig holds OpenTelemetry export settings. Tracing is off unless an
// endpoint is set.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318
	Endpoint string `env:"OTEL_ENDPOINT"`

	// Enabled switches export off even when Endpoint is set (default: true)
	Enabled bool `env:"OTEL_ENABLED" envDefault:"true"`

	// ServiceName is reported as service.name (default: medallion)
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"medallion"`
}

// NeedsDatabase reports whether the configuration touches Postgres at all.
func (c *Config) NeedsDatabase() bool {
	return !c.Pipeline.DryRun || c.Pipeline.Source == SourcePostgres
}

// Bronze source names.
const (
	SourcePostgres = "postgres"
	SourceCSV      = "csv"
)

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
