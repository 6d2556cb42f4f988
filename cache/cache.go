package cache

import (
	"context"
	"fmt"
	"math"

	"github.com/ssgreg/logf"

	"github.com/IvanBrykalov/lrucache/internal/util"
)

// Sharded spreads keys over independent LRU caches, each with its own lock.
// Eviction order is exact within a shard and approximate across shards;
// use a single LRU when global recency matters more than contention.
type Sharded[K comparable, V any] struct {
	shards   []*LRU[K, V]
	hash     func(K) uint64
	capacity int
}

var _ Cache[string, int] = (*Sharded[string, int])(nil)

// NewSharded constructs a sharded cache. Capacity is split evenly (ceil)
// across shards, so the total may exceed Capacity by less than the shard
// count. Defaults:
//   - Shards <= 0 -> auto, rounded up to the next power of two
//   - nil Hash    -> FNV-1a (panics on unsupported key types)
func NewSharded[K comparable, V any](opt Options[K, V]) *Sharded[K, V] {
	if opt.Capacity < 0 || opt.Capacity > math.MaxInt32 {
		panic(fmt.Sprintf("cache: capacity %d out of range [0, %d]", opt.Capacity, math.MaxInt32))
	}
	opt.applyDefaults()

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}
	hash := opt.Hash
	if hash == nil {
		hash = util.Fnv64a[K] // fast non-crypto hash for sharding
	}

	perShard := opt.Capacity
	if perShard > 0 {
		perShard = (opt.Capacity + sh - 1) / sh
	}
	cs := make([]*LRU[K, V], sh)
	for i := range cs {
		shardOpt := opt
		shardOpt.Capacity = perShard
		cs[i] = newLRU[K, V](shardOpt)
	}
	if perShard == 0 {
		opt.Logger.Warn("zero-capacity cache drops every insert", logf.Int("shards", sh))
	}

	return &Sharded[K, V]{
		shards:   cs,
		hash:     hash,
		capacity: perShard * sh,
	}
}

// ---- Cache[K,V] implementation ----

// Set inserts or overwrites k→v in its shard.
func (c *Sharded[K, V]) Set(k K, v V) { c.getShard(k).Set(k, v) }

// Get returns the value for k and promotes it within its shard.
func (c *Sharded[K, V]) Get(k K) (V, bool) { return c.getShard(k).Get(k) }

// Peek returns the value for k without touching it.
func (c *Sharded[K, V]) Peek(k K) (V, bool) { return c.getShard(k).Peek(k) }

// Fetch returns the value for k, promoting it when touch is true.
func (c *Sharded[K, V]) Fetch(k K, touch bool) (V, bool) { return c.getShard(k).Fetch(k, touch) }

// Take removes k and returns its value.
func (c *Sharded[K, V]) Take(k K) (V, bool) { return c.getShard(k).Take(k) }

// Touch promotes k within its shard.
func (c *Sharded[K, V]) Touch(k K) bool { return c.getShard(k).Touch(k) }

// Contains reports whether k is present.
func (c *Sharded[K, V]) Contains(k K) bool { return c.getShard(k).Contains(k) }

// Remove deletes k if present and returns true on success.
func (c *Sharded[K, V]) Remove(k K) bool { return c.getShard(k).Remove(k) }

// Keys concatenates per-shard snapshots. Each shard's run is ordered most
// recently used first; shards are not snapshotted atomically together.
func (c *Sharded[K, V]) Keys() []K {
	var out []K
	for _, s := range c.shards {
		out = append(out, s.Keys()...)
	}
	return out
}

// Len returns the total number of resident entries across all shards.
func (c *Sharded[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Cap returns the summed per-shard capacity.
func (c *Sharded[K, V]) Cap() int { return c.capacity }

// Clear empties every shard, one at a time.
func (c *Sharded[K, V]) Clear() {
	for _, s := range c.shards {
		s.Clear()
	}
}

// Stats sums per-shard counters.
func (c *Sharded[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		ss := s.Stats()
		st.Hits += ss.Hits
		st.Misses += ss.Misses
		st.Evictions += ss.Evictions
		st.Len += ss.Len
	}
	st.Cap = c.capacity
	return st
}

// GetOrLoad delegates to the key's shard, which owns the singleflight group.
func (c *Sharded[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	return c.getShard(k).GetOrLoad(ctx, k)
}

// ShardCount returns the number of shards (always a power of two).
func (c *Sharded[K, V]) ShardCount() int { return len(c.shards) }

// ---- helpers ----

// getShard picks a shard by hashing the key.
func (c *Sharded[K, V]) getShard(k K) *LRU[K, V] {
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}
