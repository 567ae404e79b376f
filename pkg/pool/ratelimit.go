package pool

import (
	"context"
	"sync"
	"time"
)

// AdmissionLimiter is the rate-limit admission gate contract. The in-memory
// token-bucket limiter is the default; a Redis-backed variant exists for
// multi-instance deployments.
type AdmissionLimiter interface {
	Check(ctx context.Context, userID string) (allowed bool, retryAfter time.Duration)
}

// tokenBucket is a lazily refilled token bucket for a single user.
// Tokens stay within [0, capacity].
type tokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// consume refills from elapsed time, capped at capacity, then tries to take
// one token.
func (b *tokenBucket) consume() bool {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = minFloat(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return true
	}
	return false
}

// refund returns one token, used when a later check in the same admission
// decision rejects; a rejected request must not cost quota.
func (b *tokenBucket) refund() {
	b.tokens = minFloat(b.capacity, b.tokens+1.0)
}

// retryAfter is the time until the next token becomes available.
func (b *tokenBucket) retryAfter() time.Duration {
	if b.tokens >= 1.0 {
		return 0
	}
	return time.Duration((1.0 - b.tokens) / b.refillRate * float64(time.Second))
}

// RateLimiter applies per-user dual token buckets: a fast burst bucket
// (requests/minute) and a slow quota bucket (requests/day). Buckets are
// created lazily on first check.
type RateLimiter struct {
	mu     sync.Mutex
	rpm    int
	daily  int
	minute map[string]*tokenBucket
	quota  map[string]*tokenBucket
}

func NewRateLimiter(requestsPerMinute, requestsPerDay int) *RateLimiter {
	return &RateLimiter{
		rpm:    requestsPerMinute,
		daily:  requestsPerDay,
		minute: make(map[string]*tokenBucket),
		quota:  make(map[string]*tokenBucket),
	}
}

// Check consumes from the daily bucket first; an empty daily bucket rejects
// immediately. Then the minute bucket is tried; if it is empty the daily
// token just spent is refunded exactly, so a rejected request never costs
// daily quota.
func (r *RateLimiter) Check(_ context.Context, userID string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	minuteBucket, ok := r.minute[userID]
	if !ok {
		minuteBucket = newTokenBucket(float64(r.rpm), float64(r.rpm)/60.0)
		r.minute[userID] = minuteBucket
	}
	quotaBucket, ok := r.quota[userID]
	if !ok {
		quotaBucket = newTokenBucket(float64(r.daily), float64(r.daily)/86400.0)
		r.quota[userID] = quotaBucket
	}

	if !quotaBucket.consume() {
		return false, quotaBucket.retryAfter()
	}
	if !minuteBucket.consume() {
		quotaBucket.refund()
		return false, minuteBucket.retryAfter()
	}
	return true, 0
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
