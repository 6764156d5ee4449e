// Package cache abstracts the short-lived assessment cache. Explanations,
// recommendations and accident warnings only change when the simulation
// ticks, so they are cached for roughly one tick interval.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss reports that a key is absent or expired. Callers treat it as
// "compute fresh", never as a failure.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the surface the assessment service needs: byte payloads keyed
// by string, with per-entry TTLs. Implementations must be safe for
// concurrent use.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything. It stands in
// when caching is disabled, so callers never branch on a nil provider.
type NoopProvider struct{}

// Get misses for every key.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// Del has nothing to delete.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close has nothing to release.
func (NoopProvider) Close() error { return nil }
