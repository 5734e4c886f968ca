// Package retry provides exponential backoff for transient failures.
//
// # Overview
//
// The service retries in two places: at startup, while it waits for the
// database and loads the yard topology, and inside the KeyValue store, where
// optimistic updates can lose a revision race. Both go through Do.
//
// # Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s
//   - Startup(): 30 attempts, 500ms-10s
//   - Conflict(): 5 attempts, 10ms-200ms
//
// # Usage
//
//	cfg := retry.Startup()
//	cfg.Retryable = errors.IsTransient
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("Database not ready", "attempt", attempt, "error", err, "retry_in", delay)
//	}
//	store, err := retry.DoWithResult(ctx, cfg, func() (*sqlstore.Store, error) {
//	    return sqlstore.Open(ctx, dbCfg)
//	})
//
// Errors wrapped with NonRetryable end the loop immediately whatever the
// Retryable classifier says.
//
// # Context Cancellation
//
// Do stops when ctx is done, both between attempts and during the backoff
// sleep.
package retry
