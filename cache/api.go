package cache

import "context"

// Cache is a bounded in-memory key/value cache interface.
// All methods are safe for concurrent use by multiple goroutines.
//
// Absence is reported through the comma-ok result and is never an error.
type Cache[K comparable, V any] interface {
	// Set inserts or overwrites k→v and makes k the most recently used entry.
	// An overwrite replaces the old entry, so Len is not double counted.
	// Least recently used entries are evicted until Len() <= Cap().
	Set(k K, v V)

	// Get returns the value for k and promotes k to most recently used.
	Get(k K) (V, bool)

	// Peek returns the value for k without changing recency order.
	Peek(k K) (V, bool)

	// Fetch returns the value for k; touch selects Get or Peek semantics.
	Fetch(k K, touch bool) (V, bool)

	// Take returns the value for k and removes the entry in the same
	// critical section.
	Take(k K) (V, bool)

	// Touch promotes k to most recently used without reading it.
	// Returns false if k is absent.
	Touch(k K) bool

	// Contains reports whether k is present. Recency is not affected.
	Contains(k K) bool

	// Remove deletes k if present and returns true on success.
	Remove(k K) bool

	// Keys returns a snapshot of keys, most recently used first.
	Keys() []K

	// Len returns the number of resident entries.
	Len() int

	// Cap returns the fixed entry capacity.
	Cap() int

	// Clear drops every entry.
	Clear()

	// Stats returns hit/miss/eviction counters and the current size.
	Stats() Stats

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)
}
