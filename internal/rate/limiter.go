package rate

import (
	"context"
	"time"
)

const (
	// DefaultCapacity is the number of requests admitted per window.
	DefaultCapacity = 10
	// DefaultInterval is the window after which a bucket is refilled.
	DefaultInterval = time.Minute
	// DefaultIdleTTL is how long an untouched bucket is kept in memory.
	DefaultIdleTTL = 10 * time.Minute
)

// Limiter admits or rejects one request for a key.
type Limiter interface {
	// TryConsume takes one unit from the bucket for key, creating a full
	// bucket when none exists. It returns false when the bucket is empty.
	TryConsume(ctx context.Context, key string) (bool, error)
}

// Config holds limiter tuning parameters. Zero values select the defaults.
type Config struct {
	Capacity int
	Interval time.Duration

	// IdleTTL and SweepInterval only apply to MemoryLimiter. IdleTTL is
	// raised to Interval when smaller, so eviction never resets a live window.
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func (c Config) normalized() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.IdleTTL < c.Interval {
		c.IdleTTL = c.Interval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = c.Interval
	}
	return c
}
