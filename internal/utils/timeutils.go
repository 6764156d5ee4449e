package utils

import "time"

// DurationMinutes returns the span between two timestamps in minutes.
// Argument order does not matter; the span is never negative.
func DurationMinutes(a, b time.Time) float64 {
	if b.Before(a) {
		a, b = b, a
	}
	return b.Sub(a).Minutes()
}
