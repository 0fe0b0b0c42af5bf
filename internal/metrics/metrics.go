// Package metrics exposes pipeline run metrics on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeStructural = "structural_fault"
	OutcomeError      = "error"
)

// Registry holds every pipeline metric. Methods are safe on a nil *Registry,
// so callers can run without metrics.
type Registry struct {
	reg *prometheus.Registry

	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec
	RowsIn        *prometheus.CounterVec
	RowsAccepted  *prometheus.CounterVec
	RowsRejected  *prometheus.CounterVec
	ActiveRuns    prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg: r,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medallion_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "medallion_run_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medallion_stage_duration_seconds",
			Help:    "Duration of each run stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}), // stage: bronze, transform, silver, ledger, gold, export
		RowsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medallion_bronze_rows_total",
			Help: "Bronze rows read by table",
		}, []string{"table"}),
		RowsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medallion_silver_rows_total",
			Help: "Rows accepted into silver by table",
		}, []string{"table"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medallion_rejected_rows_total",
			Help: "Rows rejected by table and rule",
		}, []string{"table", "rule"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medallion_active_runs",
			Help: "Runs currently executing",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "medallion_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
	r.MustRegister(m.Runs, m.RunDuration, m.StageDuration, m.RowsIn,
		m.RowsAccepted, m.RowsRejected, m.ActiveRuns, m.LastSuccess)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RunStarted marks a run as active.
func (m *Registry) RunStarted() {
	if m != nil {
		m.ActiveRuns.Inc()
	}
}

// RunFinished records the outcome and duration of a run.
func (m *Registry) RunFinished(outcome string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveStage records the duration of one run stage.
func (m *Registry) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// AddTable records row counts for one table of a run.
func (m *Registry) AddTable(table string, in, accepted int) {
	if m == nil {
		return
	}
	m.RowsIn.WithLabelValues(table).Add(float64(in))
	m.RowsAccepted.WithLabelValues(table).Add(float64(accepted))
}

// AddRejections records rejections of one rule.
func (m *Registry) AddRejections(table, rule string, n int) {
	if m != nil && n > 0 {
		m.RowsRejected.WithLabelValues(table, rule).Add(float64(n))
	}
}
