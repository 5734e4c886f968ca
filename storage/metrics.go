package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paragnema1/scc/metric"
)

// Metrics holds Prometheus metrics for one Store backend. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	writeOps     *prometheus.CounterVec   // By kind
	readOps      *prometheus.CounterVec   // By kind
	writeLatency *prometheus.HistogramVec // By kind
	readLatency  *prometheus.HistogramVec // By kind
	errors       *prometheus.CounterVec   // By operation and kind
}

// NewMetrics creates and registers the metrics of backend with registry.
// A nil registry disables metrics.
func NewMetrics(registry *metric.MetricsRegistry, backend string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"backend": backend}
	m := &Metrics{
		writeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "storage",
			Name:        "write_operations_total",
			Help:        "Total number of record inserts",
			ConstLabels: labels,
		}, []string{"kind"}),
		readOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "storage",
			Name:        "read_operations_total",
			Help:        "Total number of record reads",
			ConstLabels: labels,
		}, []string{"kind"}),
		writeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "scc",
			Subsystem:   "storage",
			Name:        "write_duration_seconds",
			Help:        "Insert latency in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		readLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "scc",
			Subsystem:   "storage",
			Name:        "read_duration_seconds",
			Help:        "Read latency in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "scc",
			Subsystem:   "storage",
			Name:        "errors_total",
			Help:        "Total number of failed storage operations",
			ConstLabels: labels,
		}, []string{"operation", "kind"}),
	}

	service := "storage_" + backend
	if err := registry.RegisterCounterVec(service, "write_operations_total", m.writeOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(service, "read_operations_total", m.readOps); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(service, "write_duration_seconds", m.writeLatency); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(service, "read_duration_seconds", m.readLatency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(service, "errors_total", m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

// ObserveWrite records one insert that started at start.
func (m *Metrics) ObserveWrite(kind Kind, start time.Time, err error) {
	if m == nil {
		return
	}
	m.writeOps.WithLabelValues(string(kind)).Inc()
	m.writeLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues("insert", string(kind)).Inc()
	}
}

// ObserveRead records one read that started at start.
func (m *Metrics) ObserveRead(kind Kind, start time.Time, err error) {
	if m == nil {
		return
	}
	m.readOps.WithLabelValues(string(kind)).Inc()
	m.readLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues("read", string(kind)).Inc()
	}
}
