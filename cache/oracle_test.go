package cache

import (
	"math/rand"
	"reflect"
	"slices"
	"testing"

	hlru "github.com/hashicorp/golang-lru/v2"
)

// Replays random operation streams against hashicorp/golang-lru and
// requires identical contents and recency order after every step.
func TestLRU_MatchesReferenceImplementation(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{1, 2, 5, 32} {
		ref, err := hlru.New[int, int](capacity)
		if err != nil {
			t.Fatal(err)
		}
		c := New[int, int](Options[int, int]{Capacity: capacity})
		r := rand.New(rand.NewSource(int64(capacity)))

		for step := 0; step < 5_000; step++ {
			k := r.Intn(capacity * 3)
			switch op := r.Intn(10); {
			case op < 4:
				c.Set(k, step)
				ref.Add(k, step)
			case op < 6:
				v1, ok1 := c.Get(k)
				v2, ok2 := ref.Get(k)
				if ok1 != ok2 || v1 != v2 {
					t.Fatalf("cap=%d step=%d Get(%d): got (%d,%v), ref (%d,%v)", capacity, step, k, v1, ok1, v2, ok2)
				}
			case op < 7:
				v1, ok1 := c.Peek(k)
				v2, ok2 := ref.Peek(k)
				if ok1 != ok2 || v1 != v2 {
					t.Fatalf("cap=%d step=%d Peek(%d) mismatch", capacity, step, k)
				}
			case op < 8:
				v1, ok1 := c.Take(k)
				v2, ok2 := ref.Peek(k)
				ref.Remove(k)
				if ok1 != ok2 || v1 != v2 {
					t.Fatalf("cap=%d step=%d Take(%d) mismatch", capacity, step, k)
				}
			case op < 9:
				if c.Remove(k) != ref.Remove(k) {
					t.Fatalf("cap=%d step=%d Remove(%d) mismatch", capacity, step, k)
				}
			default:
				if c.Touch(k) {
					ref.Get(k)
				}
			}

			// hashicorp lists oldest first; ours lists most recent first.
			want := ref.Keys()
			slices.Reverse(want)
			got := c.Keys()
			if len(got) == 0 && len(want) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("cap=%d step=%d keys diverged:\n got %v\nwant %v", capacity, step, got, want)
			}
		}
	}
}
