package taskauth

import (
	"errors"
	"time"
)

// Config holds every Engine setting. Obtain one from DefaultConfig and
// override fields before passing it to Builder.WithConfig.
type Config struct {
	JWT        JWTConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Password   PasswordConfig
	Validation ValidationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets the lifetimes of the opaque tokens.
type SessionConfig struct {
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls request admission. Capacity requests are admitted
// per key per Interval. Buckets unused for IdleTTL are evicted.
type RateLimitConfig struct {
	Capacity      int
	Interval      time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the password length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	MinLength      int
	MaxLength      int
}

/*
====================================
VALIDATION CONFIG
====================================
*/

// ValidationConfig bounds the username accepted by Register.
type ValidationConfig struct {
	UsernameMinLength int
	UsernameMaxLength int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. JWT keys are left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RefreshTTL: 7 * 24 * time.Hour,
			ResetTTL:   time.Hour,
		},
		RateLimit: RateLimitConfig{
			Capacity:      10,
			Interval:      time.Minute,
			IdleTTL:       10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
			MinLength:      6,
			MaxLength:      100,
		},
		Validation: ValidationConfig{
			UsernameMinLength: 3,
			UsernameMaxLength: 50,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}
	if c.Session.ResetTTL <= 0 {
		return errors.New("Session ResetTTL must be > 0")
	}
	if c.Session.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("Session RefreshTTL must be greater than JWT AccessTTL")
	}

	// Rate limit
	if c.RateLimit.Capacity <= 0 {
		return errors.New("RateLimit Capacity must be > 0")
	}
	if c.RateLimit.Interval <= 0 {
		return errors.New("RateLimit Interval must be > 0")
	}
	if c.RateLimit.IdleTTL < 0 || c.RateLimit.SweepInterval < 0 {
		return errors.New("RateLimit IdleTTL and SweepInterval must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Validation
	if c.Validation.UsernameMinLength < 1 {
		return errors.New("Validation UsernameMinLength must be >= 1")
	}
	if c.Validation.UsernameMaxLength < c.Validation.UsernameMinLength {
		return errors.New("Validation UsernameMaxLength must be >= UsernameMinLength")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
