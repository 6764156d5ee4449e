package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentileRanks(t *testing.T) {
	tracker := NewLatencyTracker(16)
	for _, d := range []time.Duration{
		50 * time.Millisecond,
		10 * time.Millisecond,
		40 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
	} {
		tracker.Observe(d)
	}

	if got := tracker.Count(); got != 5 {
		t.Fatalf("Count() = %d, want 5", got)
	}
	cases := []struct {
		p    float64
		want time.Duration
	}{
		{0, 10 * time.Millisecond},
		{50, 30 * time.Millisecond},
		{95, 50 * time.Millisecond},
		{100, 50 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := tracker.Percentile(tc.p); got != tc.want {
			t.Errorf("Percentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestLatencyTrackerRingEviction(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Count(); got != 3 {
		t.Fatalf("Count() after wrap = %d, want 3", got)
	}
	if got := tracker.Last(); got != 10*time.Millisecond {
		t.Fatalf("Last() = %v, want 10ms", got)
	}
	// Only the three newest samples survive the wrap.
	if got := tracker.Percentile(0); got != 8*time.Millisecond {
		t.Fatalf("Percentile(0) = %v, want 8ms", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("Percentile(100) = %v, want 10ms", got)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
	if got := tracker.Last(); got != 0 {
		t.Fatalf("Last() = %v, want 0", got)
	}
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("Percentile(95) = %v, want 0", got)
	}
}
