package yard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/metric"
	"github.com/paragnema1/scc/storage"
)

const serviceName = "yard"

// yardMetrics holds the processor's Prometheus metrics. A nil *yardMetrics
// records nothing.
type yardMetrics struct {
	core *metric.Metrics

	frames         prometheus.Counter
	alerts         prometheus.Counter
	movements      *prometheus.CounterVec // by event: entry, exit, unload_entry, unload_exit
	rejected       *prometheus.CounterVec // by subject and error class
	archiveErrors  *prometheus.CounterVec // by kind and reason: queue_full, insert
	frameDuration  prometheus.Histogram
	latchedAlarms  prometheus.Gauge
	commandsDenied *prometheus.CounterVec // by command
}

func newYardMetrics(registry *metric.MetricsRegistry) (*yardMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &yardMetrics{
		core: registry.CoreMetrics(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "frames_total",
			Help:      "Section frames processed",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "trail_through_alerts_total",
			Help:      "Trail-through alerts published",
		}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "movement_events_total",
			Help:      "Movement record updates by event",
		}, []string{"event"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "rejected_messages_total",
			Help:      "Inbound messages that could not be processed",
		}, []string{"subject", "class"}),
		archiveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "archive_errors_total",
			Help:      "Records that could not be archived",
		}, []string{"kind", "reason"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "frame_duration_seconds",
			Help:      "Time from frame receipt to detection and tracing complete",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		latchedAlarms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "latched_trail_throughs",
			Help:      "Sections with an unacknowledged trail-through",
		}),
		commandsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scc",
			Subsystem: "yard",
			Name:      "commands_denied_total",
			Help:      "Operator commands refused for lack of role",
		}, []string{"command"}),
	}

	if err := registry.RegisterCounter(serviceName, "frames_total", m.frames); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(serviceName, "trail_through_alerts_total", m.alerts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "movement_events_total", m.movements); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "rejected_messages_total", m.rejected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "archive_errors_total", m.archiveErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(serviceName, "frame_duration_seconds", m.frameDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(serviceName, "latched_trail_throughs", m.latchedAlarms); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(serviceName, "commands_denied_total", m.commandsDenied); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *yardMetrics) recordReceived(subject string) {
	if m == nil {
		return
	}
	m.core.RecordMessageReceived(serviceName, subject)
}

func (m *yardMetrics) recordPublished(subject string) {
	if m == nil {
		return
	}
	m.core.RecordMessagePublished(serviceName, subject)
}

func (m *yardMetrics) recordRejected(subject string, err error) {
	if m == nil {
		return
	}
	class := errors.Classify(err).String()
	m.rejected.WithLabelValues(subject, class).Inc()
	m.core.RecordError(serviceName, class)
}

func (m *yardMetrics) recordFrame(start time.Time) {
	if m == nil {
		return
	}
	d := time.Since(start)
	m.frames.Inc()
	m.frameDuration.Observe(d.Seconds())
	m.core.RecordProcessingDuration(serviceName, "section_info", d)
}

func (m *yardMetrics) recordAlert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

func (m *yardMetrics) recordMovement(event string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(event).Inc()
}

func (m *yardMetrics) recordArchiveError(kind storage.Kind, reason string) {
	if m == nil {
		return
	}
	m.archiveErrors.WithLabelValues(string(kind), reason).Inc()
}

func (m *yardMetrics) setLatched(n int) {
	if m == nil {
		return
	}
	m.latchedAlarms.Set(float64(n))
}

func (m *yardMetrics) recordDenied(command string) {
	if m == nil {
		return
	}
	m.commandsDenied.WithLabelValues(command).Inc()
}
