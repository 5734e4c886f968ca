// Package worker provides a generic bounded work queue.
//
// # Overview
//
// The yard processor archives every telemetry frame, alert and movement
// record. Those inserts must not hold up telemetry handling, and with a
// single worker they reach the database in the order they were submitted:
//
//	pool, err := worker.NewPool("archive", 1, 1024,
//	    func(ctx context.Context, job archiveJob) error {
//	        return store.Insert(ctx, job.kind, job.rec)
//	    },
//	    worker.WithErrorHandler(func(job archiveJob, err error) {
//	        logger.Warn("Archive insert failed", "kind", job.kind, "error", err)
//	    }),
//	    worker.WithMetrics[archiveJob](registry),
//	)
//
// # Backpressure
//
// Submit never blocks. When the queue is full the item is dropped, counted
// and ErrQueueFull is returned.
//
// # Shutdown
//
// Stop refuses new work and waits for the queue to drain, up to the given
// timeout. Cancelling the context passed to Start abandons whatever is
// still queued.
//
// # Observability
//
// Stats are always tracked with atomics. Prometheus metrics labelled with
// the pool name are registered when WithMetrics is given.
package worker
