package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ssgreg/logf"
	"golang.org/x/sync/errgroup"
)

func newLRU3() *LRU[string, int] {
	return New[string, int](Options[string, int]{Capacity: 3})
}

func mustHave(t *testing.T, c Cache[string, int], keys ...string) {
	t.Helper()
	for _, k := range keys {
		if !c.Contains(k) {
			t.Fatalf("%q must be present; keys=%v", k, c.Keys())
		}
	}
}

func mustMiss(t *testing.T, c Cache[string, int], keys ...string) {
	t.Helper()
	for _, k := range keys {
		if c.Contains(k) {
			t.Fatalf("%q must be absent; keys=%v", k, c.Keys())
		}
	}
}

// Len never exceeds Cap after any Set.
func TestLRU_CapacityInvariant(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, 1, 2, 7} {
		c := New[int, int](Options[int, int]{Capacity: capacity})
		for i := 0; i < 50; i++ {
			c.Set(i%13, i)
			if c.Len() > c.Cap() {
				t.Fatalf("cap=%d: Len %d > Cap after Set #%d", capacity, c.Len(), i)
			}
		}
	}
}

// Inserting capacity+1 distinct keys evicts only the first one.
func TestLRU_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	const capacity = 4
	c := New[string, int](Options[string, int]{Capacity: capacity})
	for i := 1; i <= capacity+1; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	mustMiss(t, c, "k1")
	mustHave(t, c, "k2", "k3", "k4", "k5")
}

// Get promotes: A is read, so B becomes the victim.
func TestLRU_GetReordersRecency(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	c.Set("C", 3)
	if v, ok := c.Get("A"); !ok || v != 1 {
		t.Fatalf("Get A: v=%d ok=%v", v, ok)
	}
	c.Set("D", 4)

	mustMiss(t, c, "B")
	mustHave(t, c, "A", "C", "D")
}

// Fetch without touch leaves A as the victim.
func TestLRU_FetchWithoutTouchKeepsOrder(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	c.Set("C", 3)
	if v, ok := c.Fetch("A", false); !ok || v != 1 {
		t.Fatalf("Fetch A: v=%d ok=%v", v, ok)
	}
	c.Set("D", 4)

	mustMiss(t, c, "A")
	mustHave(t, c, "B", "C", "D")
}

func TestLRU_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	if _, ok := c.Peek("A"); !ok {
		t.Fatal("Peek A must hit")
	}
	if got, want := c.Keys(), []string{"B", "A"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
}

func TestLRU_TouchPromotes(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	c.Set("C", 3)
	if !c.Touch("A") {
		t.Fatal("Touch A must report presence")
	}
	if c.Touch("zzz") {
		t.Fatal("Touch of absent key must report false")
	}
	if got, want := c.Keys(), []string{"A", "C", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
	if c.Len() != 3 {
		t.Fatalf("Touch must not change Len, got %d", c.Len())
	}
}

// Take hands the value out and removes the entry.
func TestLRU_TakeRemovesAndReturns(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("k", 7)
	c.Set("other", 8)
	before := c.Len()

	v, ok := c.Take("k")
	if !ok || v != 7 {
		t.Fatalf("Take: v=%d ok=%v", v, ok)
	}
	mustMiss(t, c, "k")
	if c.Len() != before-1 {
		t.Fatalf("Len = %d, want %d", c.Len(), before-1)
	}
	if _, ok := c.Take("k"); ok {
		t.Fatal("second Take must miss")
	}
}

// Remove of an absent key is a no-op.
func TestLRU_RemoveAbsentIsNoop(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	keys := c.Keys()

	if c.Remove("nope") {
		t.Fatal("Remove of absent key must report false")
	}
	if c.Len() != 2 || !reflect.DeepEqual(c.Keys(), keys) {
		t.Fatalf("state changed: len=%d keys=%v", c.Len(), c.Keys())
	}
	if !c.Remove("A") || c.Remove("A") {
		t.Fatal("Remove must succeed once")
	}
}

// Overwrite keeps Len, replaces the value and promotes the key.
func TestLRU_OverwriteResetsRecency(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	c.Set("A", 1)
	c.Set("B", 2)
	c.Set("A", 10)

	if c.Len() != 2 {
		t.Fatalf("Len = %d after overwrite, want 2", c.Len())
	}
	if v, ok := c.Peek("A"); !ok || v != 10 {
		t.Fatalf("Peek A: v=%d ok=%v", v, ok)
	}
	c.Set("C", 3)
	mustMiss(t, c, "B")
	mustHave(t, c, "A", "C")
}

// Capacity 0 keeps nothing.
func TestLRU_ZeroCapacity(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: 0,
		OnEvict:  func(k string, _ int) { evicted = append(evicted, k) },
	})
	c.Set("k", 1)

	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
	mustMiss(t, c, "k")
	if !reflect.DeepEqual(evicted, []string{"k"}) {
		t.Fatalf("new entry must evict itself, got %v", evicted)
	}
}

func TestLRU_KeysMostRecentFirst(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: 5})
	for i := 1; i <= 5; i++ {
		c.Set(i, i)
	}
	c.Get(2)
	if got, want := c.Keys(), []int{2, 5, 4, 3, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
}

func TestLRU_ClearResetsSize(t *testing.T) {
	t.Parallel()

	c := newLRU3()
	c.Set("A", 1)
	c.Set("B", 2)
	c.Clear()

	if c.Len() != 0 || len(c.Keys()) != 0 {
		t.Fatalf("after Clear: len=%d keys=%v", c.Len(), c.Keys())
	}
	mustMiss(t, c, "A", "B")

	// The cache keeps working with full capacity after Clear.
	c.Set("x", 1)
	c.Set("y", 2)
	c.Set("z", 3)
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
}

func TestLRU_SlotsAreRecycled(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: 4})
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
	}
	// capacity + the one slot linked before trimming
	if n := len(c.list.slots); n > 5 {
		t.Fatalf("arena grew to %d slots", n)
	}
}

func TestLRU_OnEvictOnlyForCapacity(t *testing.T) {
	t.Parallel()

	var got []string
	c := New[string, int](Options[string, int]{
		Capacity: 2,
		OnEvict:  func(k string, v int) { got = append(got, fmt.Sprintf("%s=%d", k, v)) },
	})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3) // overwrite: not an eviction
	c.Remove("b") // explicit: not an eviction
	c.Set("c", 4)
	c.Set("d", 5) // evicts a
	c.Take("c")
	c.Clear()

	if want := []string{"a=3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("OnEvict calls = %v, want %v", got, want)
	}
}

type countingMetrics struct {
	hits, misses, evicts, entries atomic.Int64
}

func (m *countingMetrics) Hit()               { m.hits.Add(1) }
func (m *countingMetrics) Miss()              { m.misses.Add(1) }
func (m *countingMetrics) Evict()             { m.evicts.Add(1) }
func (m *countingMetrics) AddEntries(d int)   { m.entries.Add(int64(d)) }
func (m *countingMetrics) snapshot() [4]int64 { return [4]int64{m.hits.Load(), m.misses.Load(), m.evicts.Load(), m.entries.Load()} }

func TestLRU_MetricsAndStats(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New[string, int](Options[string, int]{Capacity: 2, Metrics: m})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a
	c.Get("b")    // hit
	c.Peek("a")   // miss
	c.Take("c")   // hit, -1 entry
	c.Take("zz")  // miss
	c.Set("b", 9) // overwrite, +0

	if got, want := m.snapshot(), [4]int64{2, 2, 1, 1}; got != want {
		t.Fatalf("metrics = %v, want %v", got, want)
	}
	if int(m.entries.Load()) != c.Len() {
		t.Fatalf("entries gauge %d drifted from Len %d", m.entries.Load(), c.Len())
	}

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 2 || st.Evictions != 1 || st.Len != 1 || st.Cap != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.HitRatio() != 0.5 {
		t.Fatalf("HitRatio = %v", st.HitRatio())
	}

	c.Clear()
	if m.entries.Load() != 0 {
		t.Fatalf("entries gauge after Clear = %d", m.entries.Load())
	}
}

func TestNew_PanicsOnUnrepresentableCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{-1, math.MaxInt32 + 1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("capacity %d must panic", capacity)
				}
			}()
			New[int, int](Options[int, int]{Capacity: capacity})
		}()
	}
}

// entryRecorder captures logf entries synchronously.
type entryRecorder struct {
	mu      sync.Mutex
	entries []logf.Entry
}

//nolint:gocritic
func (r *entryRecorder) WriteEntry(e logf.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *entryRecorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Text)
	}
	return out
}

func TestLRU_Logging(t *testing.T) {
	t.Parallel()

	rec := &entryRecorder{}
	logger := logf.NewLogger(logf.LevelDebug, rec)

	New[string, int](Options[string, int]{Capacity: 0, Logger: logger})
	c := New[string, int](Options[string, int]{Capacity: 1, Logger: logger})
	c.Set("a", 1)
	c.Set("b", 2)

	want := []string{
		"zero-capacity cache drops every insert",
		"evicted least recently used entry",
	}
	if got := rec.texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("log texts = %q, want %q", got, want)
	}
}

// Singleflight: concurrent GetOrLoad calls for one key load once.
func TestLRU_GetOrLoad_Singleflight(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{
		Capacity: 64,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < N; i++ {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("loader must run exactly once, got %d", got)
	}
	if v, ok := c.Peek("k"); !ok || v != "v:k" {
		t.Fatalf("loaded value must be cached: v=%q ok=%v", v, ok)
	}
}

func TestLRU_GetOrLoad_Errors(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	if _, err := c.GetOrLoad(context.Background(), "k"); !errors.Is(err, ErrNoLoader) {
		t.Fatalf("want ErrNoLoader, got %v", err)
	}

	errDown := errors.New("backend down")
	c = New[string, int](Options[string, int]{
		Capacity: 4,
		Loader:   func(context.Context, string) (int, error) { return 0, errDown },
	})
	if _, err := c.GetOrLoad(context.Background(), "k"); !errors.Is(err, errDown) {
		t.Fatalf("want loader error, got %v", err)
	}
	if c.Contains("k") {
		t.Fatal("failed load must not be cached")
	}
}
