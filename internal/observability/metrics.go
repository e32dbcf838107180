// Package observability provides Prometheus metrics for reconciliation runs.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "txrecon"

// Stage labels.
const (
	StageTraceFetch = "trace_fetch"
	StageReproduce  = "reproduce"
	StageCompare    = "compare"
	StagePersist    = "persist"
)

// Metrics holds the Prometheus metrics of one process. Each instance owns
// its registry. All methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	LastRun       prometheus.Gauge

	// Trace metrics
	CacheHits      prometheus.Counter
	CacheFallbacks prometheus.Counter
	FetchErrors    prometheus.Counter

	// Extraction metrics
	TransfersExtracted *prometheus.GaugeVec
	LogsSkipped        *prometheus.CounterVec

	// Comparison metrics
	AlignmentScore prometheus.Gauge
	ChecksMatched  prometheus.Gauge
	ChecksTotal    prometheus.Gauge
	Discrepancies  prometheus.Gauge

	// Persistence metrics
	PersistErrors *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on a
// fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of reconciliation runs by status",
		}, []string{"status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each run stage in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_completed_timestamp",
			Help:      "Unix timestamp of the last completed run",
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trace",
			Name:      "cache_hits_total",
			Help:      "Traces served from the cache without a fetch",
		}),
		CacheFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trace",
			Name:      "cache_fallbacks_total",
			Help:      "Runs that used a cached trace after a failed fetch",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trace",
			Name:      "fetch_errors_total",
			Help:      "Failed trace fetches",
		}),

		TransfersExtracted: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "transfers",
			Help:      "Transfers extracted in the last run by origin",
		}, []string{"origin"}),
		LogsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "logs_skipped_total",
			Help:      "Transfer-signature logs that could not be decoded, by origin",
		}, []string{"origin"}),

		AlignmentScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "alignment_score",
			Help:      "Alignment score of the last run (0-100)",
		}),
		ChecksMatched: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "checks_matched",
			Help:      "Matching atomic checks in the last run",
		}),
		ChecksTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "checks",
			Help:      "Atomic checks in the last run",
		}),
		Discrepancies: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "discrepancies",
			Help:      "Discrepancy lines in the last run",
		}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "errors_total",
			Help:      "Persistence failures by target",
		}, []string{"target"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStage records the duration of a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCacheHit counts a trace served from the cache.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordFetchError counts a failed fetch and whether the cache rescued it.
func (m *Metrics) RecordFetchError(fellBack bool) {
	if m == nil {
		return
	}
	m.FetchErrors.Inc()
	if fellBack {
		m.CacheFallbacks.Inc()
	}
}

// RecordExtraction records the outcome of extracting one side.
func (m *Metrics) RecordExtraction(origin string, transfers, skipped int) {
	if m == nil {
		return
	}
	m.TransfersExtracted.WithLabelValues(origin).Set(float64(transfers))
	m.LogsSkipped.WithLabelValues(origin).Add(float64(skipped))
}

// RecordComparison records the headline comparison numbers.
func (m *Metrics) RecordComparison(score, matched, total, discrepancies int) {
	if m == nil {
		return
	}
	m.AlignmentScore.Set(float64(score))
	m.ChecksMatched.Set(float64(matched))
	m.ChecksTotal.Set(float64(total))
	m.Discrepancies.Set(float64(discrepancies))
}

// RecordPersistError counts a failed write to target.
func (m *Metrics) RecordPersistError(target string) {
	if m == nil {
		return
	}
	m.PersistErrors.WithLabelValues(target).Inc()
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(status string, at time.Time) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.LastRun.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes all metrics in the text exposition format to path,
// for pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
