// Package metric holds the Prometheus registry shared by SCC components and the
// HTTP server that exposes it.
//
// Components build their own collectors and register them under a service name:
//
//	registry := metric.NewMetricsRegistry()
//	alerts := prometheus.NewCounter(prometheus.CounterOpts{Name: "scc_trail_through_alerts_total"})
//	if err := registry.RegisterCounter("yard", "alerts", alerts); err != nil {
//	    return err
//	}
//
// A nil *MetricsRegistry means metrics are disabled; component metric helpers
// return nil and their record methods are nil-safe.
package metric
