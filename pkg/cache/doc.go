// Package cache provides stale-while-revalidate response caching over a
// best-effort key-value store.
//
// The manager implements the following behaviour:
//
// - Fresh entries are served directly
// - Stale entries are served while one background recompute refreshes them
// - Absent or expired entries are computed on the request path
// - Store and serialization failures never reach the caller
// - Entries carry an ETag fingerprint for conditional requests
// - Payloads over 1 MiB are not cached; large payloads are gzip-compressed
//
// # Basic Usage
//
//	adapter := store.NewAdapter(store.Configured(store.NewRedisStore(redisClient)), "api:")
//	pool := deferred.NewPool(deferred.DefaultPoolConfig(), logger)
//	manager := cache.NewManager(adapter, pool, cache.DefaultConfig())
//
//	result, err := cache.GetOrCompute(ctx, manager, cache.Key("people", slug),
//		func(ctx context.Context) (profiles.Profile, error) {
//			return directory.Get(ctx, slug)
//		},
//		cache.Options{TTL: 10 * time.Minute},
//	)
//	if err != nil {
//		return err // compute failed on a miss
//	}
//	// result.Status is HIT, STALE or MISS; result.ETag is the fingerprint
//
// # Entry Lifecycle
//
// An entry written at t with TTL and SWR is fresh until t+TTL, stale until
// t+TTL+SWR and stored with a lifetime of TTL+SWR. Expired entries read as
// absent and are deleted in the background.
//
// # Conditional Requests
//
//	if cache.NotModified(req, result.ETag) {
//		// respond 304 Not Modified
//	}
//
// # Purge
//
//	res := manager.Purge(ctx, []string{"people:albert-einstein"}, "search:*")
//	// res.Purged counts explicit keys plus pattern matches;
//	// res.Skipped is true when no store is configured
//
// # Metrics
//
//   - edge_cache_requests_total{result} - Lookups by hit, stale or miss
//   - edge_cache_writes_total{result} - Writes by outcome
//   - edge_cache_entry_bytes - Stored payload sizes
//   - edge_cache_revalidations_total{result} - Background recomputes
//   - edge_cache_purged_keys_total - Keys deleted by purge
package cache
