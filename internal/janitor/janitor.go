// Package janitor periodically removes expired refresh and reset tokens.
package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/taskauth"
	"go.uber.org/zap"
)

// Purger is the part of *taskauth.Engine the janitor drives.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (taskauth.PurgeResult, error)
}

// Janitor calls Purger.PurgeExpired on a fixed interval until stopped.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New returns a stopped Janitor. Call Start to begin sweeping.
func New(p Purger, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		purger:   p,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine. The first sweep happens one
// interval after Start. The loop exits when ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish. It must
// only be called after Start.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and logs its outcome.
func (j *Janitor) RunOnce(ctx context.Context) {
	res, err := j.purger.PurgeExpired(ctx, time.Time{})
	if err != nil {
		j.logger.Error("expired token purge failed", zap.Error(err))
		return
	}
	j.logger.Info("expired tokens purged",
		zap.Int64("refresh_tokens", res.RefreshTokens),
		zap.Int64("reset_tokens", res.ResetTokens),
		zap.Int("idle_buckets", res.IdleBuckets))
}
