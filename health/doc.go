// Package health reports the health of the SCC service and its collaborators.
//
// Health states are healthy, degraded and unhealthy. A degraded component
// still serves traffic (for example an archive queue close to full); an
// unhealthy one does not (for example a lost broker connection).
//
// Components register a Check with a Monitor:
//
//	monitor := health.NewMonitor("scc")
//	monitor.Register("nats", func() health.Status {
//		if client.IsHealthy() {
//			return health.NewHealthy("nats", "connected")
//		}
//		return health.NewUnhealthy("nats", client.Status().String())
//	})
//	status := monitor.Check()
//
// The metrics server serves the aggregate on /health, answering 503 unless
// it is healthy.
package health
