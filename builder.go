package taskauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/rate"
	"github.com/MrEthical07/taskauth/internal/stores"
	"github.com/MrEthical07/taskauth/jwt"
	"github.com/MrEthical07/taskauth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Storage is a persistence backend for principals and both token kinds.
// internal/storage/memory and internal/storage/postgres implement it.
type Storage interface {
	PrincipalStore
	RefreshTokens() stores.RefreshTokenRepository
	ResetTokens() stores.PasswordResetRepository
	Ping(ctx context.Context) error
}

// Builder assembles an Engine. Configure it during initialization, call
// Build once and discard it.
type Builder struct {
	config Config
	logger *zap.Logger

	storage  Storage
	redis    redis.UniversalClient
	limiter  rate.Limiter
	mailer   EmailSender
	verifier CredentialVerifier

	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The key material is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the logger used for operational warnings and the default
// audit sink. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithStorage sets the persistence backend. Required.
func (b *Builder) WithStorage(s Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis makes request admission use a Redis fixed window shared by every
// process pointing at the same server. Without it admission is per process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLimiter overrides the request limiter entirely.
func (b *Builder) WithLimiter(l rate.Limiter) *Builder {
	b.limiter = l
	return b
}

// WithEmailSender sets the password-reset mailer. Required.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.mailer = sender
	return b
}

// WithCredentialVerifier replaces the default PasswordVerifier.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
// Defaults to a zap sink over the configured logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the access-token verification histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for token issuance, expiry checks and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine. A Builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.storage == nil {
		return nil, errors.New("storage backend required")
	}
	if b.mailer == nil {
		return nil, errors.New("email sender required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:     cloneConfig(cfg),
		logger:     logger,
		principals: b.storage,
		storage:    b.storage,
		redis:      b.redis,
		mailer:     b.mailer,
		now:        now,
	}

	engine.refresh = stores.NewRefreshTokenStore(b.storage.RefreshTokens(), cfg.Session.RefreshTTL, now)
	engine.resets = stores.NewPasswordResetStore(b.storage.ResetTokens(), cfg.Session.ResetTTL, now)

	limiterCfg := rate.Config{
		Capacity:      cfg.RateLimit.Capacity,
		Interval:      cfg.RateLimit.Interval,
		IdleTTL:       cfg.RateLimit.IdleTTL,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}
	switch {
	case b.limiter != nil:
		engine.limiter = b.limiter
	case b.redis != nil:
		engine.limiter = rate.NewRedis(b.redis, limiterCfg)
	default:
		engine.limiter = rate.NewMemory(limiterCfg)
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewZapSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.jwtManager = jm

	if b.verifier != nil {
		engine.verifier = b.verifier
	} else {
		pv, err := NewPasswordVerifier(b.storage, ph, cfg.Password.UpgradeOnLogin, logger)
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		pv.now = now
		pv.onUpgrade = func() { engine.metricInc(MetricPasswordUpgraded) }
		engine.verifier = pv
	}

	b.built = true

	return engine, nil
}
