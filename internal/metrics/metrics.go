// Package metrics exposes engine and resolver activity as Prometheus
// metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metafields"

// Collector implements engine.Observer and resolver.Observer.
type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	mismatches *prometheus.CounterVec
	cache      *prometheus.CounterVec
}

// New registers the metafields metrics plus the Go and process collectors
// on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by name.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Engine operations that returned an error.",
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_mismatches_total",
			Help:      "Reads where stored values and the row partition disagreed.",
		}, []string{"field"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_cache_lookups_total",
			Help:      "Resolver cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}
	c.registry.MustRegister(
		c.operations, c.errors, c.latency, c.mismatches, c.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveOperation records one engine operation.
func (c *Collector) ObserveOperation(op string, d time.Duration, err error) {
	c.operations.WithLabelValues(op).Inc()
	c.latency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		c.errors.WithLabelValues(op).Inc()
	}
}

// ObservePartitionMismatch records a field whose values did not fit its
// row partition.
func (c *Collector) ObservePartitionMismatch(field string) {
	c.mismatches.WithLabelValues(field).Inc()
}

// ObserveCache records a resolver cache lookup.
func (c *Collector) ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cache.WithLabelValues(cache, result).Inc()
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
