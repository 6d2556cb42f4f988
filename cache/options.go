package cache

import (
	"context"

	"github.com/ssgreg/logf"
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Evict is reported for capacity evictions only.
	Evict()
	// AddEntries adjusts the resident entry count by delta. Deltas (rather
	// than absolute sizes) let several shards share one gauge.
	AddEntries(delta int)
}

// Options configures the cache behavior. Zero values are safe;
// defaults are applied in New():
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => disabled logger
//
// A zero Capacity is legal: every insert is evicted immediately.
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. Must be in [0, math.MaxInt32].
	Capacity int

	// Shards and Hash are used by NewSharded only.
	// Shards <= 0 => auto (≈ 2*GOMAXPROCS), always rounded to a power of two.
	Shards int
	// Hash maps keys to shards; nil => FNV-1a over common key types.
	Hash func(K) uint64

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called for capacity evictions under the cache lock;
	// keep callbacks lightweight and never call back into the cache.
	OnEvict func(k K, v V)
	Metrics Metrics

	// Logger receives debug-level eviction records and construction warnings.
	Logger *logf.Logger
}

func (o *Options[K, V]) applyDefaults() {
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = logf.NewDisabledLogger()
	}
}
