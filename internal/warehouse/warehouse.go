// Package warehouse is the Postgres side of the pipeline. It reads bronze
// tables and replaces silver and gold tables, and it appends rejections to the
// audit ledger table.
package warehouse

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/medallion/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schemas names the Postgres schemas of each layer.
type Schemas struct {
	Bronze string
	Silver string
	Audit  string
	Gold   string
}

// SchemasFrom reads the layer schemas from pipeline configuration.
func SchemasFrom(cfg config.PipelineConfig) Schemas {
	return Schemas{
		Bronze: cfg.BronzeSchema,
		Silver: cfg.SilverSchema,
		Audit:  cfg.AuditSchema,
		Gold:   cfg.GoldSchema,
	}
}

// Warehouse reads and writes pipeline layers through a connection pool.
type Warehouse struct {
	pool    *pgxpool.Pool
	schemas Schemas
}

// New creates a Warehouse over an existing pool.
func New(pool *pgxpool.Pool, schemas Schemas) *Warehouse {
	return &Warehouse{pool: pool, schemas: schemas}
}

// Connect opens a pool with the configured limits and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping checks the database connection.
func (w *Warehouse) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}
