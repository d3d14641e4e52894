package taskauth

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/rate"
	"github.com/MrEthical07/taskauth/internal/stores"
	"github.com/MrEthical07/taskauth/jwt"
	"github.com/MrEthical07/taskauth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Engine runs the authentication and session lifecycle. Build one with
// [Builder]; methods are safe for concurrent use.
type Engine struct {
	config       Config
	logger       *zap.Logger
	principals   PrincipalStore
	storage      Storage
	redis        redis.UniversalClient
	refresh      *stores.RefreshTokenStore
	resets       *stores.PasswordResetStore
	limiter      rate.Limiter
	verifier     CredentialVerifier
	mailer       EmailSender
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Hasher
	jwtManager   *jwt.Manager
	now          func() time.Time

	closed atomic.Bool
}

// PurgeResult counts what PurgeExpired removed.
type PurgeResult struct {
	RefreshTokens int64
	ResetTokens   int64
	IdleBuckets   int
}

// Close flushes pending audit events and stops the dispatcher. Later calls
// return ErrEngineNotReady. Close is idempotent.
func (e *Engine) Close() {
	if e == nil || e.closed.Swap(true) {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) unavailable() bool {
	return e == nil || e.closed.Load()
}

// MetricsSnapshot copies the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// AllowRequest takes one unit of the request budget for key. It returns
// ErrRateLimitExceeded once the budget for the current window is spent. A
// limiter backend failure refuses the request as ErrUnexpected.
func (e *Engine) AllowRequest(ctx context.Context, key string) error {
	if e.unavailable() || e.limiter == nil {
		return ErrEngineNotReady
	}
	ok, err := e.limiter.TryConsume(ctx, key)
	if err != nil {
		e.logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return unexpected(err)
	}
	if !ok {
		e.metricInc(MetricRateLimitHit)
		return ErrRateLimitExceeded
	}
	return nil
}

// ValidateAccess verifies a bearer access token and returns its subject
// e-mail. Every failure is reported as ErrUnauthenticated.
func (e *Engine) ValidateAccess(token string) (string, error) {
	if e.unavailable() || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	subject, err := e.jwtManager.Verify(token)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAccessRejected)
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return subject, nil
}

// Ping checks the storage backend and, when configured, Redis.
func (e *Engine) Ping(ctx context.Context) error {
	if e.unavailable() || e.storage == nil {
		return ErrEngineNotReady
	}
	if err := e.storage.Ping(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// PurgeExpired deletes refresh and reset tokens that expired before now and
// evicts idle in-process limiter buckets. A zero now means the engine clock.
func (e *Engine) PurgeExpired(ctx context.Context, now time.Time) (PurgeResult, error) {
	if e.unavailable() || e.refresh == nil {
		return PurgeResult{}, ErrEngineNotReady
	}
	if now.IsZero() {
		now = e.now()
	}

	var res PurgeResult
	var err error
	res.RefreshTokens, err = e.refresh.PurgeExpired(ctx, now)
	if err != nil {
		return res, unexpected(err)
	}
	res.ResetTokens, err = e.resets.PurgeExpired(ctx, now)
	if err != nil {
		return res, unexpected(err)
	}
	if sweeper, ok := e.limiter.(interface{ Sweep() int }); ok {
		res.IdleBuckets = sweeper.Sweep()
	}

	if n := res.RefreshTokens + res.ResetTokens; n > 0 {
		e.metrics.Add(MetricTokensPurged, uint64(n))
	}
	e.emitAudit(ctx, audit.EventPurge, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"refresh_tokens": fmt.Sprint(res.RefreshTokens),
			"reset_tokens":   fmt.Sprint(res.ResetTokens),
		}
	})
	return res, nil
}

// issueBundle signs an access token for p and attaches its refresh token,
// reusing the live one when there is one.
func (e *Engine) issueBundle(ctx context.Context, p *Principal) (*AuthBundle, error) {
	access, _, err := e.jwtManager.Issue(p.Email, 0)
	if err != nil {
		return nil, unexpected(err)
	}
	rt, err := e.refresh.IssueFor(ctx, p.ID)
	if err != nil {
		return nil, unexpected(err)
	}
	return e.bundle(access, rt.Token, p), nil
}

func (e *Engine) bundle(access, refresh string, p *Principal) *AuthBundle {
	return &AuthBundle{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(e.jwtManager.AccessTTL() / time.Second),
		User:         summaryOf(p),
		IssuedAt:     e.now().UTC(),
	}
}

func summaryOf(p *Principal) PrincipalSummary {
	return PrincipalSummary{ID: p.ID, Username: p.Username, Email: p.Email}
}
