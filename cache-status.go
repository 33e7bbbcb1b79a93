package statikd

// CacheStatus is the value of the X-Cache-Status diagnostic response header.
// It reports which branch of the revalidation decision produced the response.
type CacheStatus string

const (
	// CacheStatusHit means the body was served from the in-memory cache.
	CacheStatusHit CacheStatus = "HIT"

	// CacheStatusMiss means the body was read from disk and stored in the
	// cache for later requests.
	CacheStatusMiss CacheStatus = "MISS"

	// CacheStatusStale means a cached copy existed but no longer matched the
	// file on disk; it was invalidated and the body was read fresh.
	CacheStatusStale CacheStatus = "STALE"

	// CacheStatusBypass means the client's own copy was validated against the
	// current fingerprint and the cache was bypassed with a 304 response.
	// A 304 never consults the cache, so this is reported even when the
	// server runs without a cache engine.
	CacheStatusBypass CacheStatus = "BYPASS"

	// CacheStatusStreaming means the file exceeded the streaming threshold
	// and was streamed from disk without touching the cache.
	CacheStatusStreaming CacheStatus = "STREAMING"

	// CacheStatusDisabled means the server runs without a cache engine.
	CacheStatusDisabled CacheStatus = "DISABLED"
)

// cacheStatusNone is recorded in the event log for responses that never
// reached the cache decision, such as error pages. It is not a header value.
const cacheStatusNone CacheStatus = "N/A"
