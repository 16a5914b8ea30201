package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the enrichment core.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	IdentifiersAdded *prometheus.CounterVec
	RegistryCalls    *prometheus.CounterVec
	RegistryCallTime *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_enrichment_runs_total",
			Help: "Total number of enrichment runs by outcome",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fides_enrichment_run_duration_seconds",
			Help:    "Wall-clock duration of enrichment runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		IdentifiersAdded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_identifiers_added_total",
			Help: "Total number of identifiers added by type",
		}, []string{"type"}),
		RegistryCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_registry_calls_total",
			Help: "Total registry adapter calls by source and result class",
		}, []string{"source", "result"}),
		RegistryCallTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fides_registry_call_duration_seconds",
			Help:    "Duration of registry adapter calls by source",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"source"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_registry_cache_hits_total",
			Help: "Registry lookup cache hits by source",
		}, []string{"source"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_registry_cache_misses_total",
			Help: "Registry lookup cache misses by source",
		}, []string{"source"}),
	}
}

func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) IncrementIdentifiersAdded(typ string) {
	m.IdentifiersAdded.WithLabelValues(typ).Inc()
}

func (m *Metrics) ObserveRegistryCall(source, result string, d time.Duration) {
	m.RegistryCalls.WithLabelValues(source, result).Inc()
	m.RegistryCallTime.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) IncrementCacheHit(source string)  { m.CacheHits.WithLabelValues(source).Inc() }
func (m *Metrics) IncrementCacheMiss(source string) { m.CacheMisses.WithLabelValues(source).Inc() }
