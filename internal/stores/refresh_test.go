package stores_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/storage/memory"
	"github.com/MrEthical07/taskauth/internal/stores"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func newRefreshStore(t *testing.T) (*stores.RefreshTokenStore, stores.RefreshTokenRepository, *testClock) {
	t.Helper()
	clock := newTestClock()
	repo := memory.New().RefreshTokens()
	return stores.NewRefreshTokenStore(repo, 0, clock.Now), repo, clock
}

func TestIssueForIsIdempotentWhileLive(t *testing.T) {
	s, _, clock := newRefreshStore(t)
	ctx := context.Background()

	first, err := s.IssueFor(ctx, "p1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := clock.Now().Add(stores.DefaultRefreshTTL); !first.ExpiryDate.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, first.ExpiryDate)
	}

	clock.Advance(24 * time.Hour)
	second, err := s.IssueFor(ctx, "p1")
	if err != nil {
		t.Fatalf("issue again: %v", err)
	}
	if second.Token != first.Token || !second.ExpiryDate.Equal(first.ExpiryDate) {
		t.Fatalf("expected identical token and expiry, got %+v vs %+v", second, first)
	}
}

func TestIssueForReplacesExpiredToken(t *testing.T) {
	s, repo, clock := newRefreshStore(t)
	ctx := context.Background()

	first, err := s.IssueFor(ctx, "p1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock.Advance(stores.DefaultRefreshTTL)

	second, err := s.IssueFor(ctx, "p1")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if second.Token == first.Token {
		t.Fatal("expected a new token after expiry")
	}
	if _, err := repo.FindByToken(ctx, first.Token); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected expired token to be deleted, got %v", err)
	}
}

func TestIssueForConcurrentCallersShareOneToken(t *testing.T) {
	s, _, _ := newRefreshStore(t)
	ctx := context.Background()

	const workers = 32
	tokens := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rt, err := s.IssueFor(ctx, "p1")
			if err != nil {
				t.Errorf("issue: %v", err)
				return
			}
			tokens[i] = rt.Token
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("expected one shared token, got %q and %q", tokens[0], tokens[i])
		}
	}
}

func TestResolveAndVerifyLive(t *testing.T) {
	s, repo, clock := newRefreshStore(t)
	ctx := context.Background()

	if _, err := s.Resolve(ctx, "unknown"); !errors.Is(err, stores.ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound, got %v", err)
	}
	if _, err := s.Resolve(ctx, ""); !errors.Is(err, stores.ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound for empty value, got %v", err)
	}

	issued, err := s.IssueFor(ctx, "p1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	resolved, err := s.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := s.VerifyLive(ctx, resolved); err != nil {
		t.Fatalf("verify live: %v", err)
	}

	clock.Advance(stores.DefaultRefreshTTL + time.Second)
	if _, err := s.VerifyLive(ctx, resolved); !errors.Is(err, stores.ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
	if _, err := repo.FindByToken(ctx, issued.Token); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected expired token to be removed, got %v", err)
	}
	if _, err := s.Resolve(ctx, issued.Token); !errors.Is(err, stores.ErrRefreshNotFound) {
		t.Fatalf("expected later resolve to fail, got %v", err)
	}
}

func TestRevokeAllForAndPurge(t *testing.T) {
	s, _, clock := newRefreshStore(t)
	ctx := context.Background()

	a, _ := s.IssueFor(ctx, "p1")
	if _, err := s.IssueFor(ctx, "p2"); err != nil {
		t.Fatalf("issue p2: %v", err)
	}

	n, err := s.RevokeAllFor(ctx, "p1")
	if err != nil || n != 1 {
		t.Fatalf("expected one revoked token, n=%d err=%v", n, err)
	}
	if _, err := s.Resolve(ctx, a.Token); !errors.Is(err, stores.ErrRefreshNotFound) {
		t.Fatalf("expected revoked token to be gone, got %v", err)
	}

	clock.Advance(stores.DefaultRefreshTTL + time.Minute)
	purged, err := s.PurgeExpired(ctx, clock.Now())
	if err != nil || purged != 1 {
		t.Fatalf("expected one purged token, n=%d err=%v", purged, err)
	}
}
