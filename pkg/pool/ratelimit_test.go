package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket(t *testing.T) {
	b := newTokenBucket(2, 1.0/60.0)

	assert.True(t, b.consume())
	assert.True(t, b.consume())
	assert.False(t, b.consume(), "empty bucket must reject")
	assert.Greater(t, b.retryAfter(), time.Duration(0))

	b.refund()
	assert.True(t, b.consume(), "refunded token must be spendable")

	// Refunds never push past capacity.
	b.refund()
	b.refund()
	b.refund()
	assert.LessOrEqual(t, b.tokens, b.capacity)
}

func TestRateLimiterMinuteGate(t *testing.T) {
	r := NewRateLimiter(2, 100)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _ := r.Check(ctx, "alice")
		assert.True(t, allowed, "burst request %d should pass", i+1)
	}

	allowed, retryAfter := r.Check(ctx, "alice")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestRateLimiterDailyExhausted(t *testing.T) {
	r := NewRateLimiter(100, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _ := r.Check(ctx, "bob")
		assert.True(t, allowed)
	}

	allowed, retryAfter := r.Check(ctx, "bob")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Minute, "daily quota rejection should report a long wait")
}

func TestRateLimiterMinuteRejectionRefundsDaily(t *testing.T) {
	r := NewRateLimiter(1, 5)
	ctx := context.Background()

	allowed, _ := r.Check(ctx, "carol")
	assert.True(t, allowed)

	// Minute bucket is empty now; the rejection must hand the daily token back.
	allowed, _ = r.Check(ctx, "carol")
	assert.False(t, allowed)
	assert.InDelta(t, 4.0, r.quota["carol"].tokens, 0.01,
		"a minute-gate rejection must not cost daily quota")

	// Refill the burst bucket by hand and confirm the daily count resumes
	// where it left off.
	r.minute["carol"].tokens = 1
	allowed, _ = r.Check(ctx, "carol")
	assert.True(t, allowed)
	assert.InDelta(t, 3.0, r.quota["carol"].tokens, 0.01)
}

func TestRateLimiterPerUserIsolation(t *testing.T) {
	r := NewRateLimiter(1, 10)
	ctx := context.Background()

	allowed, _ := r.Check(ctx, "dave")
	assert.True(t, allowed)
	allowed, _ = r.Check(ctx, "dave")
	assert.False(t, allowed)

	allowed, _ = r.Check(ctx, "erin")
	assert.True(t, allowed, "one user's exhaustion must not affect another")
}
