// Package natsclient provides the publish/subscribe channel the SCC service
// uses to talk to the NATS broker.
//
// The channel is built for a broker that may be absent for minutes at a time.
// It never surfaces transport faults to callers. Instead it keeps:
//
//   - an unbounded outbound FIFO. Publish sends immediately when connected and
//     queues otherwise. A send that fails puts the message back at the head of
//     the queue so ordering is preserved across the outage.
//   - an ordered subscription registry. Every registration is replayed, in the
//     order it was made, each time a connection is established.
//   - a reconnect supervisor. It wakes on a fixed interval (10s by default),
//     retries without limit and logs with rising severity the longer the
//     outage lasts: info for the first minute, warn up to ten minutes, error
//     afterwards.
//
// NATS's own reconnect logic is disabled (nats.NoReconnect) and its
// disconnect and closed callbacks are routed into the supervisor, so there is
// exactly one recovery path.
//
// # Lifecycle
//
//	Disconnected -> Connecting -> Connected
//	Connected -> Reconnecting -> Connected
//	Connected | Reconnecting -> Disconnected   (Disconnect)
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithReconnectInterval(10*time.Second),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//
//	_ = client.Subscribe(ctx, "sem.section_info", func(msgCtx context.Context, data []byte) {
//	    // msgCtx carries a 30s deadline
//	})
//
//	_ = client.Connect(ctx)   // returns even if the broker is down
//	defer client.Disconnect()
//
//	_ = client.Publish(ctx, "scc.trail_through", payload)
//
// # Testing
//
// Unit tests inject a Dialer through WithDialer. Integration tests use
// NewTestClient, which starts a NATS container with testcontainers-go and
// returns a connected Client.
package natsclient
