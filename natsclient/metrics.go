package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paragnema1/scc/metric"
)

const metricsService = "natsclient"

// clientMetrics holds Prometheus metrics for the channel. A nil
// *clientMetrics is valid and records nothing.
type clientMetrics struct {
	status     prometheus.Gauge
	queueDepth prometheus.Gauge
	published  prometheus.Counter
	queued     prometheus.Counter
	requeued   prometheus.Counter
	core       *metric.Metrics
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	m := &clientMetrics{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scc",
			Subsystem: "channel",
			Name:      "status",
			Help:      "Channel status (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scc",
			Subsystem: "channel",
			Name:      "queue_depth",
			Help:      "Messages waiting in the outbound queue",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "channel",
			Name:      "published_total",
			Help:      "Messages handed to the broker",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "channel",
			Name:      "queued_total",
			Help:      "Messages queued while the broker was unavailable",
		}),
		requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "channel",
			Name:      "requeued_total",
			Help:      "Messages put back at the head of the queue after a failed send",
		}),
		core: registry.CoreMetrics(),
	}

	if err := registry.RegisterGauge(metricsService, "status", m.status); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(metricsService, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsService, "published_total", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsService, "queued_total", m.queued); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsService, "requeued_total", m.requeued); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *clientMetrics) setStatus(s ConnectionStatus) {
	if m == nil {
		return
	}
	m.status.Set(float64(s))
	if m.core != nil {
		m.core.RecordTransportStatus(s == StatusConnected)
	}
}

func (m *clientMetrics) setQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *clientMetrics) recordPublish(depth int) {
	if m == nil {
		return
	}
	m.published.Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *clientMetrics) recordQueued(depth int) {
	if m == nil {
		return
	}
	m.queued.Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *clientMetrics) recordRequeue() {
	if m == nil {
		return
	}
	m.requeued.Inc()
}

func (m *clientMetrics) recordReconnect() {
	if m == nil || m.core == nil {
		return
	}
	m.core.RecordTransportReconnect()
}
