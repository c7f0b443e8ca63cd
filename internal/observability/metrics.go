package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a
// harvest run. For multi-year ranges a run can take hours, so the counters
// are worth scraping live via the progress server.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec // labels: source={frost,openmeteo}, outcome={success,empty,retryable,fatal}
	RetryAttempts    prometheus.Counter
	WindowFailures   prometheus.Counter
	RowsDownloaded   prometheus.Counter
	RunActive        prometheus.Gauge

	StationDuration   prometheus.Histogram
	StationsCompleted *prometheus.CounterVec // labels: result={succeeded,failed}
}

// NewMetrics creates and registers all harvest metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metharvest",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by source and outcome.",
		}, []string{"source", "outcome"}),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metharvest",
			Name:      "retry_attempts_total",
			Help:      "Total retries of transient upstream failures.",
		}),
		WindowFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metharvest",
			Name:      "window_failures_total",
			Help:      "Sub-windows abandoned after a fatal failure.",
		}),
		RowsDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metharvest",
			Name:      "rows_downloaded_total",
			Help:      "Observation rows parsed from upstream responses.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metharvest",
			Name:      "run_active",
			Help:      "1 while a harvest run is in progress, 0 otherwise.",
		}),
		StationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metharvest",
			Name:      "station_duration_seconds",
			Help:      "Wall time spent downloading and merging one station.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),
		StationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "metharvest",
			Name:      "stations_completed_total",
			Help:      "Stations finished by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.RetryAttempts,
		m.WindowFailures,
		m.RowsDownloaded,
		m.RunActive,
		m.StationDuration,
		m.StationsCompleted,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpstreamRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "metharvest", Name: "upstream_requests_total"}, []string{"source", "outcome"}),
		RetryAttempts:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "metharvest", Name: "retry_attempts_total"}),
		WindowFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "metharvest", Name: "window_failures_total"}),
		RowsDownloaded:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "metharvest", Name: "rows_downloaded_total"}),
		RunActive:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "metharvest", Name: "run_active"}),
		StationDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "metharvest", Name: "station_duration_seconds"}),
		StationsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "metharvest", Name: "stations_completed_total"}, []string{"result"}),
	}
}
