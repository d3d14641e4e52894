package taskauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/taskauth/internal/storage/memory"
	"github.com/MrEthical07/taskauth/internal/stores"
)

var testHMACKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu     sync.Mutex
	sent   map[string][]string
	failed error
}

func (m *captureMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed != nil {
		return m.failed
	}
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[to] = append(m.sent[to], token)
	return nil
}

func (m *captureMailer) last(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens := m.sent[to]
	if len(tokens) == 0 {
		t.Fatalf("no reset mail sent to %s", to)
	}
	return tokens[len(tokens)-1]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = testHMACKey
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	db     *memory.DB
	clock  *testClock
	mailer *captureMailer
}

func newTestEnv(t *testing.T, mutate ...func(*Builder)) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     memory.New(),
		clock:  newTestClock(),
		mailer: &captureMailer{},
	}
	b := New().
		WithConfig(testConfig()).
		WithStorage(env.db).
		WithEmailSender(env.mailer).
		WithClock(env.clock.Now)
	for _, m := range mutate {
		m(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

var errRefreshBackend = errors.New("refresh backend down")

// flakyRefreshStorage is a memory DB whose refresh repository fails on demand.
type flakyRefreshStorage struct {
	*memory.DB
	failIssue  atomic.Bool
	failRevoke atomic.Bool
}

func (s *flakyRefreshStorage) RefreshTokens() stores.RefreshTokenRepository {
	return flakyRefreshRepo{RefreshTokenRepository: s.DB.RefreshTokens(), s: s}
}

type flakyRefreshRepo struct {
	stores.RefreshTokenRepository
	s *flakyRefreshStorage
}

func (r flakyRefreshRepo) WithPrincipalLock(ctx context.Context, principalID string, fn func(ctx context.Context, q stores.RefreshQueries) error) error {
	if r.s.failIssue.Load() {
		return errRefreshBackend
	}
	return r.RefreshTokenRepository.WithPrincipalLock(ctx, principalID, fn)
}

func (r flakyRefreshRepo) DeleteByPrincipal(ctx context.Context, principalID string) (int64, error) {
	if r.s.failRevoke.Load() {
		return 0, errRefreshBackend
	}
	return r.RefreshTokenRepository.DeleteByPrincipal(ctx, principalID)
}

func newFlakyRefreshEnv(t *testing.T) (*testEnv, *flakyRefreshStorage) {
	t.Helper()
	storage := &flakyRefreshStorage{DB: memory.New()}
	env := newTestEnv(t, func(b *Builder) { b.WithStorage(storage) })
	env.db = storage.DB
	return env, storage
}

func (env *testEnv) register(t *testing.T, username, email, pass string) *AuthBundle {
	t.Helper()
	b, err := env.engine.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return b
}

func TestBuildRequiresStorageAndMailer(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithEmailSender(&captureMailer{}).Build(); err == nil {
		t.Fatal("expected error without storage")
	}
	if _, err := New().WithConfig(testConfig()).WithStorage(memory.New()).Build(); err == nil {
		t.Fatal("expected error without email sender")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = nil
	_, err := New().WithConfig(cfg).WithStorage(memory.New()).WithEmailSender(&captureMailer{}).Build()
	if err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStorage(memory.New()).WithEmailSender(&captureMailer{})
	e, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.AllowRequest(context.Background(), "k"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
	if e.AuditDropped() != 0 {
		t.Fatal("nil engine reports no drops")
	}
}

func TestClosedEngineNotReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.register(t, "alice", "alice@example.com", "secret-pass")

	env.engine.Close()
	env.engine.Close()

	if _, err := env.engine.Login(ctx, "alice@example.com", "secret-pass"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login after Close: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, b.RefreshToken); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Refresh after Close: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(b.AccessToken); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("ValidateAccess after Close: expected ErrEngineNotReady, got %v", err)
	}
	if err := env.engine.AllowRequest(ctx, "k"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("AllowRequest after Close: expected ErrEngineNotReady, got %v", err)
	}
	if err := env.engine.InitiatePasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("InitiatePasswordReset after Close: expected ErrEngineNotReady, got %v", err)
	}
}

func TestAllowRequestAdmitsTenThenRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := env.engine.AllowRequest(ctx, "203.0.113.7"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := env.engine.AllowRequest(ctx, "203.0.113.7"); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if err := env.engine.AllowRequest(ctx, "198.51.100.1"); err != nil {
		t.Fatalf("other key must have its own budget: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimitHit]; got != 1 {
		t.Fatalf("expected 1 rate limit hit, got %d", got)
	}
}

type failingLimiter struct{}

func (failingLimiter) TryConsume(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}

func TestAllowRequestLimiterFailureIsUnexpected(t *testing.T) {
	env := newTestEnv(t, func(b *Builder) { b.WithLimiter(failingLimiter{}) })
	err := env.engine.AllowRequest(context.Background(), "k")
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
}

func TestPingMemoryBackend(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestPurgeExpiredRemovesOldTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "alice", "alice@example.com", "secret-pass")
	env.register(t, "bob", "bob@example.com", "secret-pass")
	if err := env.engine.InitiatePasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("InitiatePasswordReset failed: %v", err)
	}

	res, err := env.engine.PurgeExpired(ctx, env.clock.Now())
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if res.RefreshTokens != 0 || res.ResetTokens != 0 {
		t.Fatalf("nothing should be purged yet, got %+v", res)
	}

	env.clock.Advance(8 * 24 * time.Hour)
	res, err = env.engine.PurgeExpired(ctx, time.Time{})
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if res.RefreshTokens != 2 || res.ResetTokens != 1 {
		t.Fatalf("expected 2 refresh and 1 reset purged, got %+v", res)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricTokensPurged]; got != 3 {
		t.Fatalf("expected 3 purged tokens counted, got %d", got)
	}
}
