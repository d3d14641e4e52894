package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the budget with shared Redis counters.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedis creates a RedisLimiter backed by the given client.
func NewRedis(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg.normalized(),
	}
}

// TryConsume implements Limiter. Redis failures are wrapped in ErrRedisUnavailable.
func (l *RedisLimiter) TryConsume(ctx context.Context, key string) (bool, error) {
	count, err := l.incrementWithTTL(ctx, limiterKey(key), l.config.Interval)
	if err != nil {
		return false, err
	}
	return count <= int64(l.config.Capacity), nil
}

// incrementWithTTL runs INCR and EXPIRE NX in one MULTI/EXEC, so a counter
// never exists without a window expiry. NX keeps the expiry of an open window
// and repairs a counter that lost its TTL.
func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}

func limiterKey(key string) string {
	return "rl:" + key
}
