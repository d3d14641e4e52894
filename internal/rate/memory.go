package rate

import (
	"context"
	"hash/maphash"
	"sync"
	"time"
)

const shardCount = 32

type bucket struct {
	remaining   int
	windowStart time.Time
	lastSeen    time.Time
}

type shard struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// MemoryLimiter is an in-process Limiter. Lookup, refill and decrement for a
// key happen under a single shard lock, so concurrent callers can never be
// admitted beyond Capacity in one window.
type MemoryLimiter struct {
	config Config
	seed   maphash.Seed
	shards [shardCount]shard
	now    func() time.Time
}

// NewMemory creates a MemoryLimiter.
func NewMemory(cfg Config) *MemoryLimiter {
	return newMemoryWithClock(cfg, time.Now)
}

func newMemoryWithClock(cfg Config, now func() time.Time) *MemoryLimiter {
	l := &MemoryLimiter{
		config: cfg.normalized(),
		seed:   maphash.MakeSeed(),
		now:    now,
	}
	for i := range l.shards {
		l.shards[i].buckets = make(map[string]*bucket)
	}
	return l
}

// TryConsume implements Limiter. It never returns an error.
func (l *MemoryLimiter) TryConsume(_ context.Context, key string) (bool, error) {
	s := l.shardFor(key)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	l.sweepLocked(s, now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{remaining: l.config.Capacity, windowStart: now}
		s.buckets[key] = b
	} else if !now.Before(b.windowStart.Add(l.config.Interval)) {
		b.remaining = l.config.Capacity
		b.windowStart = now
	}
	b.lastSeen = now

	if b.remaining <= 0 {
		return false, nil
	}
	b.remaining--
	return true, nil
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

// Sweep evicts idle buckets from every shard immediately.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	evicted := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		before := len(s.buckets)
		s.lastSweep = time.Time{}
		l.sweepLocked(s, now)
		evicted += before - len(s.buckets)
		s.mu.Unlock()
	}
	return evicted
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	return &l.shards[maphash.String(l.seed, key)%shardCount]
}

func (l *MemoryLimiter) sweepLocked(s *shard, now time.Time) {
	if now.Sub(s.lastSweep) < l.config.SweepInterval {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) >= l.config.IdleTTL {
			delete(s.buckets, key)
		}
	}
}
