package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Session and selection metrics.
	LiveSessions     prometheus.Gauge
	GateWaitDuration prometheus.Histogram
	Clicks           *prometheus.CounterVec // labels: outcome={accepted,malformed}
	StaleResults     prometheus.Counter

	// Weather lookup metrics.
	Lookups        *prometheus.CounterVec // labels: outcome={success,error}
	LookupDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.LiveSessions,
		m.GateWaitDuration,
		m.Clicks,
		m.StaleResults,
		m.Lookups,
		m.LookupDuration,
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
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "click_weather",
			Name:      "live_sessions",
			Help:      "Number of connected map sessions.",
		}),
		GateWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "click_weather",
			Name:      "gate_wait_duration_seconds",
			Help:      "Time from session open until the map capability reported ready.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "click_weather",
			Name:      "clicks_total",
			Help:      "Map click events by outcome.",
		}, []string{"outcome"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "click_weather",
			Name:      "stale_results_total",
			Help:      "Lookup results discarded because a newer click superseded them.",
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "click_weather",
			Name:      "lookups_total",
			Help:      "Weather lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "click_weather",
			Name:      "lookup_duration_seconds",
			Help:      "Weather lookup duration in seconds, including enrichment.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "click_weather",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "click_weather",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "click_weather",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "click_weather",
			Name:      "geocode_enabled",
			Help:      "1 when place-name enrichment is enabled, 0 otherwise.",
		}),
	}
}
