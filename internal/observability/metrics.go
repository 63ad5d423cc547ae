// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// Each instance owns its registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Table metrics
	RawRowsRead *prometheus.CounterVec
	StageRows   *prometheus.GaugeVec

	// Feature metrics
	FeatureRowsEmitted prometheus.Counter
	NonFiniteCells     *prometheus.CounterVec
	DuplicatesDropped  prometheus.Counter

	// Store metrics
	StoreWriteDuration *prometheus.HistogramVec
	StoreWriteErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance on a fresh registry.
// Go runtime and process collectors are registered alongside.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "price_feature_lab"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"phase"}),

		RawRowsRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tables",
			Name:      "raw_rows_read_total",
			Help:      "Total number of raw rows read by table",
		}, []string{"table"}),
		StageRows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "stage_rows",
			Help:      "Row count at each stage of the last run",
		}, []string{"stage"}),

		FeatureRowsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "rows_emitted_total",
			Help:      "Total number of feature rows emitted",
		}),
		NonFiniteCells: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "non_finite_cells_total",
			Help:      "Total number of NaN or infinite feature values by column",
		}, []string{"column"}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "competitor_duplicates_dropped_total",
			Help:      "Total number of duplicate competitor observations dropped",
		}),

		StoreWriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Feature store write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store"}),
		StoreWriteErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_errors_total",
			Help:      "Total number of feature store write errors",
		}, []string{"store"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPhase records the duration of one pipeline phase.
func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	m.PipelineDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(status string, finishedAt time.Time) {
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	if status == "succeeded" {
		m.LastSuccessfulRun.Set(float64(finishedAt.Unix()))
	}
}

// RecordRawRows adds rows read from a raw table.
func (m *Metrics) RecordRawRows(table string, n int) {
	m.RawRowsRead.WithLabelValues(table).Add(float64(n))
}

// RecordStageRows sets the row count of a stage for the last run.
func (m *Metrics) RecordStageRows(stage string, n int) {
	m.StageRows.WithLabelValues(stage).Set(float64(n))
}

// RecordNonFinite adds non-finite cell counts by column.
func (m *Metrics) RecordNonFinite(byColumn map[string]int) {
	for col, n := range byColumn {
		m.NonFiniteCells.WithLabelValues(col).Add(float64(n))
	}
}

// RecordStoreWrite records a feature store write.
func (m *Metrics) RecordStoreWrite(store string, d time.Duration, err error) {
	m.StoreWriteDuration.WithLabelValues(store).Observe(d.Seconds())
	if err != nil {
		m.StoreWriteErrors.WithLabelValues(store).Inc()
	}
}
