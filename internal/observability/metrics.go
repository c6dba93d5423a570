package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction engine.
type Metrics struct {
	SubQueries      *prometheus.CounterVec // labels: source, outcome={success,default,failed}
	SubQueryRetries *prometheus.CounterVec // labels: source

	ResolutionDuration prometheus.Histogram
	PhysicsDuration    prometheus.Histogram

	ActiveSessions   prometheus.Gauge
	SessionsFinished *prometheus.CounterVec // labels: status={completed,failed,cancelled}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SubQueries,
		m.SubQueryRetries,
		m.ResolutionDuration,
		m.PhysicsDuration,
		m.ActiveSessions,
		m.SessionsFinished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SubQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "impact_engine",
			Name:      "sub_queries_total",
			Help:      "Sub-query settlements by source and outcome.",
		}, []string{"source", "outcome"}),
		SubQueryRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "impact_engine",
			Name:      "sub_query_retries_total",
			Help:      "Sub-query retry attempts by source.",
		}, []string{"source"}),
		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "impact_engine",
			Name:      "resolution_duration_seconds",
			Help:      "Wall time to resolve all sub-queries of a session.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PhysicsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "impact_engine",
			Name:      "physics_duration_seconds",
			Help:      "Duration of the consequence pipeline computation.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "impact_engine",
			Name:      "active_sessions",
			Help:      "Extraction sessions currently in a non-terminal state.",
		}),
		SessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "impact_engine",
			Name:      "sessions_finished_total",
			Help:      "Sessions reaching a terminal status.",
		}, []string{"status"}),
	}
}
