package util

import "runtime"

// maxShards caps the automatic shard count.
const maxShards = 256

// NextPow2 returns the smallest power of two >= x (1 for x == 0).
// Results that would overflow are clamped to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}

// ReasonableShardCount returns nextPow2(2*GOMAXPROCS) clamped to [1, 256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > maxShards {
		n = maxShards
	}
	return n
}

// ShardIndex maps a hash to a shard index. Power-of-two shard counts take
// the mask path; anything else falls back to modulo.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	n := uint64(shards)
	if n&(n-1) == 0 {
		return int(hash & (n - 1))
	}
	return int(hash % n)
}
