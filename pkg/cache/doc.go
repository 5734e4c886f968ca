// Package cache provides a generic, thread-safe cache whose entries expire a
// fixed time after they are set.
//
// Expired entries are dropped lazily: Get treats them as misses and removes
// them, and Purge sweeps the whole cache. There is no background goroutine,
// so a cache needs no Close.
//
// Hit, miss and eviction counts are always kept and returned by Stats.
// WithMetrics additionally exports them to Prometheus.
//
//	roles, err := cache.NewTTL[[]string](30*time.Second,
//		cache.WithMetrics[[]string](registry, "roles"))
//	if err != nil {
//		return err
//	}
//	roles.Set("admin", []string{"Admin"})
//	if r, ok := roles.Get("admin"); ok {
//		// ...
//	}
package cache
