// Package cache implements the in-memory content cache: a mutex-guarded,
// recency-ordered store with per-entry TTL and dual eviction limits on item
// count and total content bytes.
//
// Every operation runs under a single mutex covering
// the store, the recency order and the counters, so callers never observe a
// half-applied update. The lock is only ever held for in-memory work.
package cache

import (
	"sync"
	"time"
)

// Config bounds an Engine. Zero or negative limits mean unbounded.
type Config struct {
	// MaxItems is the maximum number of entries.
	MaxItems int
	// MaxBytes is the maximum total of content bytes across all entries.
	MaxBytes int64
}

// View is a read-only borrow of a cache entry returned by Get. The value must
// not be mutated or retained past writing the current response.
type View struct {
	Value       []byte
	Fingerprint string
}

// Stats is a point-in-time snapshot of engine counters, taken under the same
// lock as mutation.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	ItemCount  int    `json:"itemCount"`
	BytesInUse int64  `json:"bytesInUse"`
	MaxItems   int    `json:"maxItems"`
	MaxBytes   int64  `json:"maxBytes"`
}

// Engine is a thread-safe LRU content cache. All instances are explicitly
// constructed and injected; there is no package-level singleton.
type Engine struct {
	mu         sync.Mutex
	store      *lruStore
	hits       uint64
	misses     uint64
	bytesInUse int64
	maxItems   int
	maxBytes   int64
}

func New(config Config) *Engine {
	return &Engine{
		store:    newLRUStore(),
		maxItems: config.MaxItems,
		maxBytes: config.MaxBytes,
	}
}

// Get returns a read-only view of the entry for key. An expired entry is
// removed on access and reported as a miss. A successful Get marks the entry
// most recently used.
func (e *Engine) Get(key string) (View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.store.lookup(key)
	if !ok {
		e.misses++
		Misses.Inc()
		return View{}, false
	}
	n := e.store.node(i)
	if n.expired(time.Now()) {
		e.release(i, "expired")
		e.misses++
		Misses.Inc()
		return View{}, false
	}
	e.hits++
	Hits.Inc()
	e.store.touch(i)
	return View{Value: n.value, Fingerprint: n.fingerprint}, true
}

// Set stores value under key with the given fingerprint. An existing entry is
// fully removed first; there is no partial-update path. A ttl of zero or less
// means the entry never expires on its own. Set then evicts from the LRU end
// until both limits hold again; a value larger than MaxBytes is evicted right
// away even though it was just inserted.
func (e *Engine) Set(key string, value []byte, fingerprint string, ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i, ok := e.store.lookup(key); ok {
		e.release(i, "replaced")
	}

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	size := int64(len(value))
	e.store.insertFront(key, value, fingerprint, expires, size)
	e.bytesInUse += size

	for e.overLimit() {
		_, evictedSize, ok := e.store.evictBack()
		if !ok {
			break
		}
		e.bytesInUse -= evictedSize
		Evictions.WithLabelValues("capacity").Inc()
	}
	e.syncGauges()
}

// Invalidate removes the entry for key if present. It never errors.
func (e *Engine) Invalidate(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i, ok := e.store.lookup(key); ok {
		e.release(i, "invalidated")
		e.syncGauges()
	}
}

// Stats returns a consistent snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		Hits:       e.hits,
		Misses:     e.misses,
		ItemCount:  e.store.len(),
		BytesInUse: e.bytesInUse,
		MaxItems:   e.maxItems,
		MaxBytes:   e.maxBytes,
	}
}

func (e *Engine) overLimit() bool {
	if e.maxItems > 0 && e.store.len() > e.maxItems {
		return true
	}
	if e.maxBytes > 0 && e.bytesInUse > e.maxBytes {
		return true
	}
	return false
}

// release must be called with the lock held.
func (e *Engine) release(i int, reason string) {
	e.bytesInUse -= e.store.node(i).size
	e.store.remove(i)
	Evictions.WithLabelValues(reason).Inc()
	e.syncGauges()
}

func (e *Engine) syncGauges() {
	Items.Set(float64(e.store.len()))
	SizeBytes.Set(float64(e.bytesInUse))
}
