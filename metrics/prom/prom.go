// Package prom exports cache.Metrics signals as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/lrucache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
// Several caches (or all shards of one) may share an Adapter: the entries
// gauge is maintained from deltas.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   prometheus.Counter
	entries  prometheus.Gauge
	capacity prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:     counter("hits_total", "Number of lookups that found the key."),
		misses:   counter("misses_total", "Number of lookups that did not find the key."),
		evicts:   counter("evictions_total", "Number of entries evicted to respect capacity."),
		entries:  gauge("entries", "Number of resident entries."),
		capacity: gauge("capacity_entries", "Configured entry capacity."),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.entries, a.capacity)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter.
func (a *Adapter) Evict() { a.evicts.Inc() }

// AddEntries moves the entries gauge by delta.
func (a *Adapter) AddEntries(delta int) { a.entries.Add(float64(delta)) }

// SetCapacity publishes the configured capacity; call it once after
// constructing the cache (cache.Cap()).
func (a *Adapter) SetCapacity(n int) { a.capacity.Set(float64(n)) }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
