package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/medallion/internal/bronze"
	"github.com/JonMunkholm/medallion/internal/config"
	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/gold"
	"github.com/JonMunkholm/medallion/internal/metrics"
	"github.com/JonMunkholm/medallion/internal/warehouse"
)

// Wiring is a Runner built from configuration plus the resources it owns.
type Wiring struct {
	Runner *Runner
	// Warehouse is nil when the configuration never touches Postgres.
	Warehouse *warehouse.Warehouse

	close func()
}

// Close releases the database pool, if any.
func (w *Wiring) Close() {
	if w.close != nil {
		w.close()
	}
}

// Health pings the database, or reports healthy without one.
func (w *Wiring) Health(ctx context.Context) error {
	if w.Warehouse == nil {
		return nil
	}
	return w.Warehouse.Ping(ctx)
}

// Build connects to Postgres when needed and wires the provider, sinks and
// exporter selected by cfg. reg may be nil.
func Build(ctx context.Context, cfg *config.Config, reg *metrics.Registry) (*Wiring, error) {
	policy, err := core.ParsePolicy(cfg.Pipeline.Policy)
	if err != nil {
		return nil, err
	}

	w := &Wiring{Runner: &Runner{
		Metrics: reg,
		Options: core.Options{
			Policy:         policy,
			StrictDelivery: cfg.Pipeline.StrictDelivery,
		},
	}}

	if cfg.NeedsDatabase() {
		pool, err := warehouse.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		w.close = pool.Close
		w.Warehouse = warehouse.New(pool, warehouse.SchemasFrom(cfg.Pipeline))
		logDatabase(cfg.Database.URL)
	}

	switch cfg.Pipeline.Source {
	case config.SourceCSV:
		w.Runner.Provider = bronze.NewCSVDir(cfg.Pipeline.CSVDir)
	case config.SourcePostgres:
		if w.Warehouse == nil {
			w.Close()
			return nil, fmt.Errorf("postgres source requires a database")
		}
		w.Runner.Provider = w.Warehouse
	default:
		w.Close()
		return nil, fmt.Errorf("unknown bronze source %q", cfg.Pipeline.Source)
	}

	if !cfg.Pipeline.DryRun {
		w.Runner.Publisher = w.Warehouse
		if cfg.Pipeline.Gold {
			w.Runner.Gold = w.Warehouse
		}
	}
	if cfg.Pipeline.Gold && cfg.Pipeline.ExportDir != "" {
		w.Runner.Exporter = gold.CSVExporter{Dir: cfg.Pipeline.ExportDir}
	}
	return w, nil
}

// logDatabase logs which database we connected to without the credentials.
func logDatabase(dsn string) {
	if u, err := url.Parse(dsn); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		return
	}
	slog.Info("connected to database")
}
