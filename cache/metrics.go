package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Evict()         {}
func (NoopMetrics) AddEntries(int) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Stats is a point-in-time snapshot of cache counters.
// Counters are read without the cache lock, so they may be slightly
// ahead of or behind Len.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
	Cap       int
}

// HitRatio returns hits/(hits+misses), or 0 when nothing was read.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
