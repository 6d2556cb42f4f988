package main

import (
	hlru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/ssgreg/logf"

	"github.com/IvanBrykalov/lrucache/cache"
	"github.com/IvanBrykalov/lrucache/internal/config"
)

// target is the slice of the cache API the workload drives. cache.Cache
// satisfies it directly; golang-lru goes through golangLRU.
type target interface {
	Get(k string) (string, bool)
	Set(k, v string)
	Len() int
	Cap() int
}

func newTarget(cfg config.Config, m cache.Metrics, log *logf.Logger) (target, error) {
	opt := cache.Options[string, string]{
		Capacity: cfg.Capacity,
		Shards:   cfg.Shards,
		Metrics:  m,
		Logger:   log,
	}
	switch cfg.Impl {
	case config.ImplLRU:
		return cache.New[string, string](opt), nil
	case config.ImplSharded:
		return cache.NewSharded[string, string](opt), nil
	case config.ImplGolangLRU:
		return newGolangLRU(cfg.Capacity, m)
	}
	return nil, errors.Errorf("unknown implementation %q", cfg.Impl)
}

// golangLRU adapts hashicorp/golang-lru as a baseline, reporting the same
// hit/miss/eviction signals as our caches.
type golangLRU struct {
	c        *hlru.Cache[string, string]
	m        cache.Metrics
	capacity int
}

func newGolangLRU(capacity int, m cache.Metrics) (*golangLRU, error) {
	c, err := hlru.NewWithEvict[string, string](capacity, func(string, string) { m.Evict() })
	if err != nil {
		return nil, errors.Wrap(err, "create golang-lru cache")
	}
	return &golangLRU{c: c, m: m, capacity: capacity}, nil
}

func (g *golangLRU) Get(k string) (string, bool) {
	v, ok := g.c.Get(k)
	if ok {
		g.m.Hit()
	} else {
		g.m.Miss()
	}
	return v, ok
}

func (g *golangLRU) Set(k, v string) { g.c.Add(k, v) }

func (g *golangLRU) Len() int { return g.c.Len() }

func (g *golangLRU) Cap() int { return g.capacity }
