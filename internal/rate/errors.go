package rate

import "errors"

// ErrRedisUnavailable wraps Redis failures in RedisLimiter.
var ErrRedisUnavailable = errors.New("redis unavailable")
