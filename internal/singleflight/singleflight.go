// Package singleflight coalesces concurrent loads of the same cache key.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group runs at most one fn per key at a time; concurrent callers for the
// same key wait for and share the leader's result.
//
// Cancelling ctx in a follower unblocks only that follower. The leader's
// fn keeps running; thread ctx into fn if the work itself must stop.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
	dups int
}

// PanicError wraps a panic raised by fn so followers observe it as an error.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("singleflight: load panicked: %v", p.Value) }

// Do runs fn once for the given key. shared reports whether the result was
// handed to more than one caller. A follower whose ctx is cancelled
// returns ctx.Err().
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	g.run(key, c, fn)

	g.mu.Lock()
	shared = c.dups > 0
	g.mu.Unlock()
	return c.val, c.err, shared
}

// Forget drops the in-flight marker for key, so the next Do starts a new
// load instead of joining the current one.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// run executes fn outside the lock, publishes the result and wakes followers.
// Publishing happens-before close(done).
func (g *Group[K, V]) run(key K, c *call[V], fn func() (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = &PanicError{Value: r}
		}
		close(c.done)

		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
	}()
	c.val, c.err = fn()
}
