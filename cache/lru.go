package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ssgreg/logf"

	"github.com/IvanBrykalov/lrucache/internal/singleflight"
	"github.com/IvanBrykalov/lrucache/internal/util"
)

// ErrNoLoader is returned by GetOrLoad when no Loader was configured in Options.
var ErrNoLoader = errors.New("cache: no Loader provided")

// maxPrealloc bounds the arena reserved up front for large capacities.
const maxPrealloc = 4096

// LRU is a bounded cache with a single recency order.
//
// One RWMutex guards the recency list, the index and the size as a unit.
// Len, Contains and Keys take the shared lock; everything that reads a
// value or changes recency takes the exclusive lock.
type LRU[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu    sync.RWMutex
	list  recency[K, V]
	index map[K]handle

	capacity int // immutable after New
	opt      Options[K, V]
	log      *logf.Logger

	sf singleflight.Group[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

var _ Cache[string, int] = (*LRU[string, int])(nil)

// New constructs an LRU cache with the provided Options.
// It panics if Capacity is negative or does not fit the int32 slot index.
func New[K comparable, V any](opt Options[K, V]) *LRU[K, V] {
	if opt.Capacity < 0 || opt.Capacity > math.MaxInt32 {
		panic(fmt.Sprintf("cache: capacity %d out of range [0, %d]", opt.Capacity, math.MaxInt32))
	}
	opt.applyDefaults()

	c := newLRU[K, V](opt)
	if c.capacity == 0 {
		c.log.Warn("zero-capacity cache drops every insert")
	}
	return c
}

// newLRU builds the cache from validated options with defaults applied.
func newLRU[K comparable, V any](opt Options[K, V]) *LRU[K, V] {
	prealloc := maxPrealloc
	if opt.Capacity < maxPrealloc {
		prealloc = opt.Capacity + 1 // Set links the new entry before trimming
	}
	return &LRU[K, V]{
		list:     newRecency[K, V](prealloc),
		index:    make(map[K]handle, prealloc),
		capacity: opt.Capacity,
		opt:      opt,
		log:      opt.Logger,
	}
}

// Set inserts or overwrites k→v at the front of the recency order and
// evicts from the back until Len() <= Cap().
func (c *LRU[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delta := 1
	if i, ok := c.lookupLocked(k); ok {
		c.list.release(i)
		delete(c.index, k)
		delta = 0
	}

	h := c.list.alloc(k, v)
	c.list.pushFront(h.idx)
	c.index[k] = h

	delta -= c.trimLocked()
	c.opt.Metrics.AddEntries(delta)
}

// Get returns the value for k and promotes it to most recently used.
func (c *LRU[K, V]) Get(k K) (V, bool) { return c.Fetch(k, true) }

// Peek returns the value for k without touching it.
func (c *LRU[K, V]) Peek(k K) (V, bool) { return c.Fetch(k, false) }

// Fetch returns a copy of the value for k. When touch is true the entry
// also becomes most recently used.
func (c *LRU[K, V]) Fetch(k K, touch bool) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.lookupLocked(k)
	if !ok {
		c.missLocked()
		var zero V
		return zero, false
	}
	if touch {
		c.list.moveToFront(i)
	}
	c.hitLocked()
	return c.list.at(i).val, true
}

// Take removes k and hands its value to the caller.
func (c *LRU[K, V]) Take(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.lookupLocked(k)
	if !ok {
		c.missLocked()
		var zero V
		return zero, false
	}
	_, v := c.list.release(i)
	delete(c.index, k)
	c.hitLocked()
	c.opt.Metrics.AddEntries(-1)
	return v, true
}

// Touch promotes k to most recently used. Returns false if k is absent.
func (c *LRU[K, V]) Touch(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.lookupLocked(k)
	if !ok {
		return false
	}
	c.list.moveToFront(i)
	return true
}

// Contains reports whether k is present without touching it.
func (c *LRU[K, V]) Contains(k K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.index[k]
	return ok && c.list.valid(h)
}

// Remove deletes k if present and returns true on success.
// Explicit removal is not counted as an eviction.
func (c *LRU[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.lookupLocked(k)
	if !ok {
		return false
	}
	c.list.release(i)
	delete(c.index, k)
	c.opt.Metrics.AddEntries(-1)
	return true
}

// Keys returns a snapshot of resident keys, most recently used first.
func (c *LRU[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]K, 0, c.list.len)
	c.list.each(func(s *slot[K, V]) {
		out = append(out, s.key)
	})
	return out
}

// Len returns the number of resident entries.
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.len
}

// Cap returns the capacity set at construction.
func (c *LRU[K, V]) Cap() int { return c.capacity }

// Clear drops every entry. Cleared entries are not reported to OnEvict.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.list.len
	c.list.reset()
	c.index = make(map[K]handle, c.list.prealloc)
	c.opt.Metrics.AddEntries(-n)
}

// Stats returns a snapshot of counters.
func (c *LRU[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
		Len:       c.Len(),
		Cap:       c.capacity,
	}
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// If no Loader is configured, returns ErrNoLoader.
func (c *LRU[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join
		if v, ok := c.Peek(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	return v, err
}

// -------------------- internals (mu held) --------------------

// lookupLocked resolves k to a validated slot index.
func (c *LRU[K, V]) lookupLocked(k K) (int32, bool) {
	h, ok := c.index[k]
	if !ok {
		return nilIdx, false
	}
	if !c.list.valid(h) {
		// Stale handle: the index must never outlive its slot.
		delete(c.index, k)
		return nilIdx, false
	}
	return h.idx, true
}

// trimLocked evicts LRU entries until the capacity holds and returns the
// number of evicted entries.
func (c *LRU[K, V]) trimLocked() int {
	n := 0
	for c.list.len > c.capacity {
		i := c.list.back()
		if i == nilIdx {
			break
		}
		k, v := c.list.release(i)
		delete(c.index, k)
		n++

		c.evicts.Add(1)
		c.opt.Metrics.Evict()
		c.log.AtLevel(logf.LevelDebug, func(log logf.LogFunc) {
			log("evicted least recently used entry", logf.Any("key", k), logf.Int("capacity", c.capacity))
		})
		if cb := c.opt.OnEvict; cb != nil {
			cb(k, v)
		}
	}
	return n
}

func (c *LRU[K, V]) hitLocked() {
	c.hits.Add(1)
	c.opt.Metrics.Hit()
}

func (c *LRU[K, V]) missLocked() {
	c.misses.Add(1)
	c.opt.Metrics.Miss()
}
