package utils

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent duration samples in a fixed-size ring
// and answers percentile queries over them. Safe for concurrent use: the
// simulation loop writes while health checks read.
type LatencyTracker struct {
	mu   sync.RWMutex
	ring []time.Duration
	next int
	full bool
}

// NewLatencyTracker returns a tracker holding up to size samples. A size at
// or below zero gets a default covering roughly two hours of 15-second ticks.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, size)}
}

// Observe records one sample, overwriting the oldest once the ring is full.
func (t *LatencyTracker) Observe(d time.Duration) {
	t.mu.Lock()
	t.ring[t.next] = d
	t.next++
	if t.next == len(t.ring) {
		t.next = 0
		t.full = true
	}
	t.mu.Unlock()
}

// Count reports how many samples the tracker currently holds.
func (t *LatencyTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.held()
}

// Last returns the most recent sample, or zero before the first observation.
func (t *LatencyTracker) Last() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.held() == 0 {
		return 0
	}
	idx := t.next - 1
	if idx < 0 {
		idx = len(t.ring) - 1
	}
	return t.ring[idx]
}

// Percentile answers the nearest-rank percentile (0-100) over the held
// samples. With no samples it returns zero; p at or below 0 yields the
// minimum and p at or above 100 the maximum.
func (t *LatencyTracker) Percentile(p float64) time.Duration {
	t.mu.RLock()
	n := t.held()
	if n == 0 {
		t.mu.RUnlock()
		return 0
	}
	sorted := make([]time.Duration, n)
	if t.full {
		copy(sorted, t.ring)
	} else {
		copy(sorted, t.ring[:t.next])
	}
	t.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}
	rank := int(math.Ceil(p / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func (t *LatencyTracker) held() int {
	if t.full {
		return len(t.ring)
	}
	return t.next
}
