package metric

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paragnema1/scc/errors"
	"github.com/paragnema1/scc/health"
)

func gatheredNames(t *testing.T, r *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_Register(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		register func(r *MetricsRegistry) error
	}{
		{
			name:   "counter",
			metric: "test_counter",
			register: func(r *MetricsRegistry) error {
				c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "h"})
				c.Inc()
				return r.RegisterCounter("svc", "test_counter", c)
			},
		},
		{
			name:   "gauge",
			metric: "test_gauge",
			register: func(r *MetricsRegistry) error {
				g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "h"})
				g.Set(3)
				return r.RegisterGauge("svc", "test_gauge", g)
			},
		},
		{
			name:   "histogram",
			metric: "test_histogram",
			register: func(r *MetricsRegistry) error {
				h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_histogram", Help: "h"})
				h.Observe(0.2)
				return r.RegisterHistogram("svc", "test_histogram", h)
			},
		},
		{
			name:   "counter vec",
			metric: "test_counter_vec",
			register: func(r *MetricsRegistry) error {
				v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_counter_vec", Help: "h"}, []string{"l"})
				v.WithLabelValues("a").Inc()
				return r.RegisterCounterVec("svc", "test_counter_vec", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewMetricsRegistry()
			require.NoError(t, tt.register(registry))
			assert.True(t, gatheredNames(t, registry)[tt.metric])
		})
	}
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "h"})

	require.NoError(t, registry.RegisterCounter("svc", "dup_counter", first))

	err := registry.RegisterCounter("svc", "dup_counter", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Same collector name under another service collides inside Prometheus
	err = registry.RegisterCounter("other", "dup_counter", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gone_gauge", Help: "h"})

	require.NoError(t, registry.RegisterGauge("svc", "gone_gauge", gauge))
	assert.True(t, registry.Unregister("svc", "gone_gauge"))
	assert.False(t, registry.Unregister("svc", "gone_gauge"))

	// Can be registered again after removal
	require.NoError(t, registry.RegisterGauge("svc", "gone_gauge", gauge))
}

func TestCoreMetrics_Record(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordMessageReceived("yard", "sem.section_info")
	m.RecordMessagePublished("yard", "scc.trail_through")
	m.RecordError("yard", "invalid")
	m.RecordTransportStatus(true)
	m.RecordTransportReconnect()

	names := gatheredNames(t, registry)
	assert.True(t, names["scc_messages_received_total"])
	assert.True(t, names["scc_messages_published_total"])
	assert.True(t, names["scc_errors_total"])
	assert.True(t, names["scc_transport_connected"])
	assert.True(t, names["scc_transport_reconnects_total"])
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordTransportStatus(true)

	server := NewServer("", "", registry)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "scc_transport_connected 1")

	probe, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	probe.Body.Close()
	assert.Equal(t, http.StatusOK, probe.StatusCode)

	assert.Equal(t, "http://:9090/metrics", server.Address())
}

func TestServer_HealthCheck(t *testing.T) {
	server := NewServer("", "", NewMetricsRegistry())
	var healthy atomic.Bool
	healthy.Store(true)
	server.SetHealthCheck(func() health.Status {
		if healthy.Load() {
			return health.NewHealthy("scc", "all checks passing")
		}
		return health.NewUnhealthy("scc", "unhealthy: nats")
	})

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var status health.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Healthy)

	healthy.Store(false)
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy: nats", status.Message)
}
