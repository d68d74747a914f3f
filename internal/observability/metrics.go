package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed service.
type Metrics struct {
	// Feed refresh metrics.
	Fetches         *prometheus.CounterVec // labels: outcome={success,error,canceled}
	FetchDuration   prometheus.Histogram
	EventsRetained  prometheus.Gauge
	EventsDiscarded prometheus.Counter
	SchedulerActive prometheus.Gauge

	// Filter state metrics.
	FilterUpdates       prometheus.Counter
	FilterStorageErrors *prometheus.CounterVec // labels: op={read,write,decode}

	// Downstream publishing.
	Published *prometheus.CounterVec // labels: outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Fetches,
		m.FetchDuration,
		m.EventsRetained,
		m.EventsDiscarded,
		m.SchedulerActive,
		m.FilterUpdates,
		m.FilterStorageErrors,
		m.Published,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Feed fetch attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a complete fetch, normalize, and replace cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EventsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_retained",
			Help:      "Number of events held after the last successful fetch.",
		}),
		EventsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_discarded_total",
			Help:      "Features dropped for non-positive magnitude.",
		}),
		SchedulerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_active",
			Help:      "1 when the refresh scheduler is active, 0 otherwise.",
		}),
		FilterUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_updates_total",
			Help:      "Accepted filter criteria updates.",
		}),
		FilterStorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_storage_errors_total",
			Help:      "Filter persistence failures by operation.",
		}, []string{"op"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Event batches published downstream by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}
