// Package cache stores API responses in Redis so that repeated reads of the
// same page can be answered without another round trip.
//
// Only responses that carry an explicit Expires header are stored. Listing
// endpoints normally send none, so live pages always go to the API and the
// cursors of a stream never see stale data.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/v1/vault/accounts/12",
//		QueryParams: url.Values{},
//		Account:     "6f1c",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # Conditional Requests
//
// Entries that carry an ETag or Last-Modified value are revalidated with
// If-None-Match or If-Modified-Since. A 304 answer refreshes the stored TTL.
//
// # Metrics
//
//   - fireblocks_cache_hits_total{layer="redis"}
//   - fireblocks_cache_misses_total
//   - fireblocks_cache_size_bytes{layer="redis"}
//   - fireblocks_cache_conditional_requests_total
//   - fireblocks_cache_not_modified_total
//   - fireblocks_cache_errors_total{operation}
package cache
