package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paragnema1/scc/metric"
)

// cacheMetrics exports cache counters. A nil *cacheMetrics records nothing.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of cache misses",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of expired entries removed",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "scc",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
	}

	if err := registry.RegisterCounter(name, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "cache_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "cache_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) recordEviction(size int) {
	if m != nil {
		m.evictions.Inc()
		m.size.Set(float64(size))
	}
}

func (m *cacheMetrics) setSize(size int) {
	if m != nil {
		m.size.Set(float64(size))
	}
}
