package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for rule resolution.
type Metrics struct {
	// Resolution latency by trigger
	ResolveLatency *prometheus.HistogramVec

	// Resolutions by trigger and source (customized, defaults, cache)
	Resolutions *prometheus.CounterVec

	// Plugin failures by plugin ID and failure kind
	PluginFailures *prometheus.CounterVec

	// Cache hits and misses
	CacheLookups *prometheus.CounterVec
}

// New creates a Metrics instance with all rule resolution metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolveLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventgate_rules_resolve_duration_seconds",
			Help:    "Duration of rule resolution by trigger",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"trigger"}),

		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventgate_rules_resolutions_total",
			Help: "Total rule resolutions by trigger and rule source",
		}, []string{"trigger", "source"}), // source: "customized", "defaults", "cache"

		PluginFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventgate_rules_plugin_failures_total",
			Help: "Total plugin failures isolated during resolution",
		}, []string{"plugin", "kind"}), // kind: "unknown", "evaluate"

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventgate_rules_cache_lookups_total",
			Help: "Resolution cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// ObserveResolveLatency records the duration of one resolution.
func (m *Metrics) ObserveResolveLatency(trigger string, d time.Duration) {
	if m != nil {
		m.ResolveLatency.WithLabelValues(trigger).Observe(d.Seconds())
	}
}

// IncrementResolution records a resolution and where its rules came from.
func (m *Metrics) IncrementResolution(trigger, source string) {
	if m != nil {
		m.Resolutions.WithLabelValues(trigger, source).Inc()
	}
}

// IncrementPluginFailure records an isolated plugin failure.
func (m *Metrics) IncrementPluginFailure(plugin, kind string) {
	if m != nil {
		m.PluginFailures.WithLabelValues(plugin, kind).Inc()
	}
}

// IncrementCacheLookup records a cache lookup outcome.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
