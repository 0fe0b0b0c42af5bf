// Package pipeline runs the bronze to silver transformation end to end: it reads
// a bronze snapshot, transforms it, replaces silver, appends the rejection
// ledger and refreshes gold.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/medallion/internal/bronze"
	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/gold"
	"github.com/JonMunkholm/medallion/internal/logging"
	"github.com/JonMunkholm/medallion/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JonMunkholm/medallion/internal/pipeline"

// SilverSink replaces the silver tables.
type SilverSink interface {
	ReplaceSilver(ctx context.Context, silver core.SilverTables) error
}

// AuditSink appends ledger entries of one run.
type AuditSink interface {
	AppendLedger(ctx context.Context, runID uuid.UUID, entries []core.Entry) error
}

// Publisher replaces silver and appends the ledger of one run atomically.
type Publisher interface {
	Publish(ctx context.Context, runID uuid.UUID, silver core.SilverTables, entries []core.Entry) error
}

// GoldSink replaces the gold tables.
type GoldSink interface {
	ReplaceGold(ctx context.Context, tables []gold.Table) error
}

// Exporter writes gold tables outside the database.
type Exporter interface {
	Export(tables []gold.Table) ([]string, error)
}

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunResult summarizes one run.
type RunResult struct {
	RunID      uuid.UUID         `json:"run_id"`
	Status     string            `json:"status"`
	DryRun     bool              `json:"dry_run"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Report     *core.Report      `json:"report,omitempty"`
	GoldRows   map[string]int    `json:"gold_rows,omitempty"`
	Exported   []string          `json:"exported,omitempty"`
	Error      *core.UserMessage `json:"error,omitempty"`

	// Result is the in-memory transform output. It is not serialized.
	Result *core.Result `json:"-"`
}

// Runner wires a provider and sinks around core.Transform. When Publisher is
// set it writes silver and the ledger together and Silver and Audit are
// ignored. All three may be nil for a dry run. Gold and Exporter are optional,
// and gold is only aggregated when at least one of them is set.
type Runner struct {
	Provider  bronze.Provider
	Publisher Publisher
	Silver    SilverSink
	Audit     AuditSink
	Gold     GoldSink
	Exporter Exporter
	Metrics  *metrics.Registry
	Limiter  *RunLimiter
	Options  core.Options

	// NewID generates run IDs. Defaults to uuid.New.
	NewID func() uuid.UUID

	// TracerProvider creates the run and stage spans. Defaults to the global
	// provider.
	TracerProvider trace.TracerProvider

	mu     sync.RWMutex
	latest *RunResult
}

// Latest returns the most recent finished run, or nil.
func (r *Runner) Latest() *RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Run executes one pipeline run. A structural fault aborts the run before any
// sink is written and is returned unwrapped, so callers can errors.As it into
// a *core.ContractError. Data-quality rejections never fail a run.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if r.Provider == nil {
		return nil, errors.New("pipeline: no bronze provider")
	}
	if r.Limiter != nil {
		if err := r.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer r.Limiter.Release()
	}

	newID := r.NewID
	if newID == nil {
		newID = uuid.New
	}
	res := &RunResult{
		RunID:     newID(),
		Status:    StatusFailed,
		DryRun:    r.Publisher == nil && r.Silver == nil && r.Audit == nil,
		StartedAt: time.Now().UTC(),
	}

	ctx = logging.WithRunID(ctx, res.RunID.String())
	ctx, span := r.tracer().Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID.String()),
		attribute.String("run.policy", r.Options.Policy.String()),
		attribute.Bool("run.dry_run", res.DryRun),
	))
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.Info("pipeline run started", "policy", r.Options.Policy, "strict_delivery", r.Options.StrictDelivery, "dry_run", res.DryRun)
	r.Metrics.RunStarted()

	err := r.run(ctx, res)

	res.FinishedAt = time.Now().UTC()
	elapsed := res.FinishedAt.Sub(res.StartedAt)
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
		res.Status = StatusSucceeded
		logger.Info("pipeline run finished", "duration", elapsed)
	case core.IsStructural(err):
		outcome = metrics.OutcomeStructural
		logger.Error("pipeline run aborted: structural fault", "error", err)
	default:
		outcome = metrics.OutcomeError
		logger.Error("pipeline run failed", "error", err, "duration", elapsed)
	}
	if err != nil {
		msg := core.MapError(err)
		res.Error = &msg
		span.RecordError(err)
		span.SetStatus(codes.Error, msg.Code)
	}
	r.Metrics.RunFinished(outcome, elapsed, res.FinishedAt)

	r.mu.Lock()
	r.latest = res
	r.mu.Unlock()

	return res, err
}

func (r *Runner) run(ctx context.Context, res *RunResult) error {
	var snapshot core.BronzeSnapshot
	err := r.stage(ctx, "bronze", func(ctx context.Context) error {
		var err error
		snapshot, err = r.Provider.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("read bronze: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var result *core.Result
	err = r.stage(ctx, "transform", func(ctx context.Context) error {
		var err error
		result, err = core.Transform(snapshot, r.Options)
		return err
	})
	if err != nil {
		return err
	}
	res.Result = result
	res.Report = &result.Report
	r.logReport(ctx, result.Report)

	if err := r.publish(ctx, res.RunID, result); err != nil {
		return err
	}

	if r.Gold == nil && r.Exporter == nil {
		return nil
	}
	tables := gold.Aggregate(result.Silver).List()
	res.GoldRows = make(map[string]int, len(tables))
	for _, t := range tables {
		res.GoldRows[t.Name] = len(t.Rows)
	}

	if r.Gold != nil {
		err := r.stage(ctx, "gold", func(ctx context.Context) error {
			if err := r.Gold.ReplaceGold(ctx, tables); err != nil {
				return fmt.Errorf("replace gold: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if r.Exporter != nil {
		err := r.stage(ctx, "export", func(ctx context.Context) error {
			paths, err := r.Exporter.Export(tables)
			if err != nil {
				return fmt.Errorf("export gold: %w", err)
			}
			res.Exported = paths
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) tracer() trace.Tracer {
	tp := r.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// publish writes silver and the ledger, atomically when a Publisher is set.
func (r *Runner) publish(ctx context.Context, runID uuid.UUID, result *core.Result) error {
	if r.Publisher != nil {
		return r.stage(ctx, "publish", func(ctx context.Context) error {
			if err := r.Publisher.Publish(ctx, runID, result.Silver, result.Ledger.Entries()); err != nil {
				return fmt.Errorf("publish silver: %w", err)
			}
			return nil
		})
	}

	if r.Silver != nil {
		err := r.stage(ctx, "silver", func(ctx context.Context) error {
			if err := r.Silver.ReplaceSilver(ctx, result.Silver); err != nil {
				return fmt.Errorf("replace silver: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	if r.Audit != nil {
		return r.stage(ctx, "ledger", func(ctx context.Context) error {
			if err := r.Audit.AppendLedger(ctx, runID, result.Ledger.Entries()); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}
			return nil
		})
	}
	return nil
}

// stage runs fn in its own span and records its duration.
func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer().Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	r.Metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	return err
}

// logReport logs per-table counts and one warning per rule that rejected rows.
func (r *Runner) logReport(ctx context.Context, report core.Report) {
	for _, t := range report.Tables {
		table := string(t.Table)
		logger := logging.WithFields(ctx, "table", table)
		logger.Info("table validated", "input", t.Input, "accepted", t.Accepted, "rejected", t.Rejected)
		r.Metrics.AddTable(table, t.Input, t.Accepted)

		for _, rc := range t.Rules {
			logger.Warn("[DQ] rows rejected", "rule", rc.Rule, "reason", rc.Reason, "rejected_rows", rc.Rows)
			r.Metrics.AddRejections(table, rc.Rule, rc.Rows)
		}
	}
}
