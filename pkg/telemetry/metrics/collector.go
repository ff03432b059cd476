package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "greenlight"
)

// Collector registers and records all Prometheus metrics. It implements the
// observer interfaces of the evidence cache and the decision engine so those
// packages stay free of metrics dependencies.
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
	fetchesTotal     *prometheus.CounterVec

	policiesLoaded prometheus.Gauge
}

// NewCollector creates a collector registered on the given registry. If
// registry is nil a fresh one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of gating decisions by outcome",
			},
			[]string{"outcome"},
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Time spent evaluating one gating decision",
				// Decisions are usually cache-fast; the tail covers remote
				// rule fetches over slow links.
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
			},
		),

		cacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_cache_hits_total",
				Help:      "Total number of evidence cache hits by store",
			},
			[]string{"store"},
		),

		cacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_cache_misses_total",
				Help:      "Total number of evidence cache misses by store",
			},
			[]string{"store"},
		),

		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evidence_fetches_total",
				Help:      "Total number of evidence store fetches by store and result",
			},
			[]string{"store", "result"},
		),

		policiesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "policies_loaded",
				Help:      "Number of policies in the active snapshot",
			},
		),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.decisionDuration,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.fetchesTotal,
		c.policiesLoaded,
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// DecisionEvaluated records one completed decision evaluation.
func (c *Collector) DecisionEvaluated(passed bool, elapsed time.Duration) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	c.decisionsTotal.WithLabelValues(outcome).Inc()
	c.decisionDuration.Observe(elapsed.Seconds())
}

// CacheHit records a cache hit for the named evidence store.
func (c *Collector) CacheHit(store string) {
	c.cacheHitsTotal.WithLabelValues(store).Inc()
}

// CacheMiss records a cache miss for the named evidence store.
func (c *Collector) CacheMiss(store string) {
	c.cacheMissesTotal.WithLabelValues(store).Inc()
}

// FetchCompleted records the outcome of one underlying store fetch.
func (c *Collector) FetchCompleted(store, result string) {
	c.fetchesTotal.WithLabelValues(store, result).Inc()
}

// PoliciesLoaded records the size of the active policy snapshot.
func (c *Collector) PoliciesLoaded(count int) {
	c.policiesLoaded.Set(float64(count))
}
