package cache

// nilIdx marks the absence of a neighbour (or an empty list / free list).
const nilIdx int32 = -1

// slot is an arena cell of the recency list. Live slots are linked
// MRU<->LRU through prev/next; free slots are chained through next.
type slot[K comparable, V any] struct {
	key K
	val V

	prev int32
	next int32

	// gen is bumped every time the slot is released, which invalidates
	// all handles issued for the previous occupant.
	gen uint32
}

// handle is a stable reference to a live slot. It stays valid across
// arena growth because it is an index, not an address.
type handle struct {
	idx int32
	gen uint32
}

// recency is a doubly linked list over an index-addressed arena.
// head is MRU, tail is LRU. All methods require the owner's lock.
type recency[K comparable, V any] struct {
	slots []slot[K, V]
	head  int32
	tail  int32
	free  int32
	len   int

	prealloc int
}

func newRecency[K comparable, V any](prealloc int) recency[K, V] {
	return recency[K, V]{
		slots: make([]slot[K, V], 0, prealloc),
		head:  nilIdx,
		tail:  nilIdx,
		free:  nilIdx,

		prealloc: prealloc,
	}
}

// alloc stores k/v in a fresh or recycled slot and returns its handle.
// The slot is not linked yet.
func (l *recency[K, V]) alloc(k K, v V) handle {
	var i int32
	if l.free != nilIdx {
		i = l.free
		l.free = l.slots[i].next
	} else {
		l.slots = append(l.slots, slot[K, V]{})
		i = int32(len(l.slots) - 1)
	}
	s := &l.slots[i]
	s.key, s.val = k, v
	s.prev, s.next = nilIdx, nilIdx
	return handle{idx: i, gen: s.gen}
}

// valid reports whether h still refers to the slot it was issued for.
func (l *recency[K, V]) valid(h handle) bool {
	return h.idx >= 0 && int(h.idx) < len(l.slots) && l.slots[h.idx].gen == h.gen
}

// at returns the slot addressed by i. Callers must have validated it.
func (l *recency[K, V]) at(i int32) *slot[K, V] { return &l.slots[i] }

// pushFront links slot i at MRU in O(1).
func (l *recency[K, V]) pushFront(i int32) {
	s := &l.slots[i]
	s.prev = nilIdx
	s.next = l.head
	if l.head != nilIdx {
		l.slots[l.head].prev = i
	}
	l.head = i
	if l.tail == nilIdx {
		l.tail = i
	}
	l.len++
}

// unlink detaches slot i from the list in O(1). The slot stays allocated.
func (l *recency[K, V]) unlink(i int32) {
	s := &l.slots[i]
	if s.prev != nilIdx {
		l.slots[s.prev].next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nilIdx {
		l.slots[s.next].prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nilIdx, nilIdx
	l.len--
}

// moveToFront splices slot i to MRU without touching the arena.
func (l *recency[K, V]) moveToFront(i int32) {
	if i == l.head {
		return
	}
	l.unlink(i)
	l.pushFront(i)
}

// back returns the LRU slot index, or nilIdx when empty.
func (l *recency[K, V]) back() int32 { return l.tail }

// release unlinks slot i, returns its key and value, clears it for the
// garbage collector and puts it on the free list.
func (l *recency[K, V]) release(i int32) (K, V) {
	l.unlink(i)
	s := &l.slots[i]
	k, v := s.key, s.val

	var (
		zk K
		zv V
	)
	s.key, s.val = zk, zv
	s.gen++
	s.next = l.free
	l.free = i
	return k, v
}

// each walks the list MRU -> LRU.
func (l *recency[K, V]) each(fn func(s *slot[K, V])) {
	for i := l.head; i != nilIdx; i = l.slots[i].next {
		fn(&l.slots[i])
	}
}

// reset drops every slot and the old arena with it.
func (l *recency[K, V]) reset() {
	l.slots = make([]slot[K, V], 0, l.prealloc)
	l.head, l.tail, l.free = nilIdx, nilIdx, nilIdx
	l.len = 0
}
