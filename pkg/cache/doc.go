// Package cache stores hub GET responses in redis and supports conditional
// requests.
//
// Entries keep the response body together with its ETag and Last-Modified
// validators. A later request for the same space, endpoint and query sends
// If-None-Match (or If-Modified-Since); a 304 answer serves the cached body
// and extends its lifetime.
//
//	manager, err := cache.NewManager(redisClient, cache.DefaultTTL)
//	if err != nil {
//		return err
//	}
//
//	key := cache.Key{
//		Space:    "xyz123",
//		Endpoint: "iterate",
//		Query:    url.Values{"limit": {"100"}, "handle": {"0"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the hub
//	}
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - spacesync_cache_hits_total
//   - spacesync_cache_misses_total
//   - spacesync_cache_size_bytes
//   - spacesync_cache_not_modified_total
//   - spacesync_cache_conditional_requests_total
//   - spacesync_cache_errors_total{operation}
package cache
