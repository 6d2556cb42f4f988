// Package cache provides a generic, bounded, thread-safe LRU cache.
//
// Design
//
//   - Storage: entries live in an arena of slots linked MRU↔LRU by int32
//     indices. The key index maps K to a (slot, generation) handle, so the
//     arena can grow or recycle slots without invalidating the index, and a
//     stale handle is detected instead of followed. Get/Set/Touch/Take/Remove
//     are O(1) expected: one map access plus a constant number of link fixes.
//
//   - Concurrency: one sync.RWMutex guards the list, the index and the size.
//     Len, Contains and Keys take the read lock. Get, Peek, Fetch, Touch,
//     Set, Take, Remove and Clear take the write lock, because a read that
//     touches recency is a write. Operations are atomic one call at a time;
//     "Contains then Set" is not, use Set's overwrite semantics instead.
//
//   - Capacity: fixed at construction. After every Set the cache evicts from
//     the LRU end until Len() <= Cap(). Capacity 0 is legal and keeps nothing.
//
//   - Absence: every lookup returns (value, ok); a missing key is never an
//     error and the zero value is never a sentinel.
//
//   - Values are returned by value. The cache never hands out a pointer into
//     its storage; if V itself is a pointer or slice, sharing is the caller's
//     business.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using singleflight.
//     If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/AddEntries signals.
//     NoopMetrics is the default; see package metrics/prom for Prometheus.
//
//   - Sharded: NewSharded splits keys across power-of-two independent LRUs to
//     cut lock contention. Recency is then exact only within a shard.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	v, ok := c.Take("a") // removes "a"
//
// Peek vs Get
//
//	c.Peek("a")          // read, recency unchanged
//	c.Get("a")           // read and promote to MRU
//	c.Fetch("a", touch)  // either, chosen at run time
//
// With GetOrLoad
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(ctx, "key")
package cache
