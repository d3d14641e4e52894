//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/internal/storage/memory"
)

var integrationKey = []byte("integration-secret-0123456789abc")

type tokenInbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (i *tokenInbox) SendPasswordReset(_ context.Context, to, token string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokens == nil {
		i.tokens = make(map[string]string)
	}
	i.tokens[to] = token
	return nil
}

func integrationConfig() taskauth.Config {
	cfg := taskauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = integrationKey
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

// newIntegrationEngine builds an engine whose limiter runs against miniredis.
// Engines built from the same client share one request budget.
func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient) *taskauth.Engine {
	t.Helper()

	engine, err := taskauth.New().
		WithConfig(integrationConfig()).
		WithStorage(memory.New()).
		WithRedis(rdb).
		WithEmailSender(&tokenInbox{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}
