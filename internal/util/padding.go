package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is 64 on the CPUs we care about.
const CacheLineSize = 64

// CacheLinePad separates the lock-guarded part of a struct from the
// atomically updated counters that follow it.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 is an atomic counter that owns a full cache line, so
// hit/miss/eviction counters bumped by different goroutines do not share
// one.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Compile-time size check: exactly one cache line.
var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
