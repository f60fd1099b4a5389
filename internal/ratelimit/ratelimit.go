// Package ratelimit provides a pluggable rate limiting interface.
//
// The default is an in-memory token bucket keyed by client IP. The
// Limiter interface is the contract; a shared-store implementation can
// be substituted for multi-instance deployments.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. The key is
	// opaque to the limiter. An error signals a limiter malfunction;
	// callers should fail open rather than block traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
