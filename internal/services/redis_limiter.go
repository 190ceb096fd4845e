package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the same fixed-window contract on a shared Redis
// counter (INCR + EXPIRE), so quotas hold across multiple server instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "qrl:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, NewInternalError("rate limiter unavailable")
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return false, NewInternalError("rate limiter unavailable")
		}
	}
	return count <= int64(limit), nil
}

func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int) int {
	count, err := l.client.Get(ctx, l.prefix+key).Int()
	if err != nil {
		return limit
	}
	if count >= limit {
		return 0
	}
	return limit - count
}

func (l *RedisLimiter) ResetAt(ctx context.Context, key string) time.Time {
	ttl, err := l.client.TTL(ctx, l.prefix+key).Result()
	if err != nil || ttl <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(ttl)
}
