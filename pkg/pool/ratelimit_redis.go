package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is the distributed variant of the admission gate, for
// deployments running more than one API instance against shared limits.
// Fixed windows via INCR/EXPIRE; semantics mirror the in-memory limiter:
// daily window first, refunded when the minute window rejects.
type RedisRateLimiter struct {
	rdb   *redis.Client
	rpm   int
	daily int
}

func NewRedisRateLimiter(rdb *redis.Client, requestsPerMinute, requestsPerDay int) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, rpm: requestsPerMinute, daily: requestsPerDay}
}

func (r *RedisRateLimiter) Check(ctx context.Context, userID string) (bool, time.Duration) {
	now := time.Now().UTC()

	dayKey := fmt.Sprintf("ratelimit:%s:day:%s", userID, now.Format("2006-01-02"))
	minuteKey := fmt.Sprintf("ratelimit:%s:min:%s", userID, now.Format("2006-01-02T15:04"))

	dayCount, err := r.incrWithTTL(ctx, dayKey, 24*time.Hour)
	if err != nil {
		// Redis outage must not block admission entirely; fail open.
		return true, 0
	}
	if dayCount > int64(r.daily) {
		return false, time.Until(now.Truncate(24 * time.Hour).Add(24 * time.Hour))
	}

	minuteCount, err := r.incrWithTTL(ctx, minuteKey, time.Minute)
	if err != nil {
		return true, 0
	}
	if minuteCount > int64(r.rpm) {
		// Refund the daily slot consumed by this rejected request.
		r.rdb.Decr(ctx, dayKey)
		return false, time.Until(now.Truncate(time.Minute).Add(time.Minute))
	}
	return true, 0
}

func (r *RedisRateLimiter) incrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.rdb.Expire(ctx, key, ttl)
	}
	return count, nil
}
