// Package config loads the server configuration from defaults, an optional
// JSON file, a .env file plus the environment, and command-line flags, in
// that order. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/taskauth"
)

// Config holds runtime settings for taskauth-server.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// DatabaseDSN selects PostgreSQL. Empty means the in-memory backend.
	DatabaseDSN    string
	MigrateOnStart bool

	// RedisAddr shares the request budget across processes. Empty means an
	// in-process limiter.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSigningMethod  string
	JWTSecret         string
	JWTPrivateKeyFile string
	JWTPublicKeyFile  string
	JWTIssuer         string
	JWTAudience       string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	ResetTTL          time.Duration

	RateLimitCapacity int
	RateLimitInterval time.Duration
	TrustForwardedFor bool

	LogLevel string
	LogDev   bool
	LogFile  string

	// SMTPHost enables SMTP delivery. Empty logs reset links instead.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	// SMTPTimeout bounds one delivery, dial to QUIT.
	SMTPTimeout  time.Duration
	MailFrom     string
	MailFromName string
	ResetURL     string

	JanitorInterval time.Duration
	AuditEnabled    bool
	// AuditFile routes audit events to a rotated JSON-lines file instead
	// of the logger.
	AuditFile       string
	MetricsEnabled  bool
}

// LoadDefaults populates c with development defaults. The JWT secret is
// left empty so a server never starts with a guessable key.
func (c *Config) LoadDefaults() {
	lib := taskauth.DefaultConfig()

	c.HTTPAddr = ":8080"
	c.ShutdownTimeout = 10 * time.Second
	c.MigrateOnStart = true
	c.JWTSigningMethod = "hs256"
	c.JWTIssuer = "taskauth"
	c.AccessTTL = lib.JWT.AccessTTL
	c.RefreshTTL = lib.Session.RefreshTTL
	c.ResetTTL = lib.Session.ResetTTL
	c.RateLimitCapacity = lib.RateLimit.Capacity
	c.RateLimitInterval = lib.RateLimit.Interval
	c.LogLevel = "info"
	c.SMTPPort = 587
	c.SMTPTimeout = 30 * time.Second
	c.MailFrom = "noreply@taskflow.local"
	c.MailFromName = "TaskFlow"
	c.ResetURL = "http://localhost:3000/reset-password"
	c.JanitorInterval = time.Hour
	c.AuditEnabled = true
	c.MetricsEnabled = true
}

// Load builds a Config from args (without the program name) and the
// process environment.
func Load(args []string) (*Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	files := scanFileFlags(args)
	if files.json != "" {
		if err := parseJSON(cfg, files.json); err != nil {
			return nil, err
		}
	}
	envLookup, err := withDotenv(files.env, lookup)
	if err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, envLookup); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	switch c.JWTSigningMethod {
	case "hs256":
		if len(c.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
		}
	case "ed25519":
		if c.JWTPrivateKeyFile == "" || c.JWTPublicKeyFile == "" {
			errs = append(errs, errors.New("ed25519 signing requires JWT_PRIVATE_KEY_FILE and JWT_PUBLIC_KEY_FILE"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT signing method %q", c.JWTSigningMethod))
	}
	if c.JanitorInterval <= 0 {
		errs = append(errs, errors.New("janitor interval must be > 0"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be > 0"))
	}
	return errors.Join(errs...)
}

// EngineConfig converts c into a taskauth.Config, reading key files as
// needed.
func (c *Config) EngineConfig() (taskauth.Config, error) {
	cfg := taskauth.DefaultConfig()
	cfg.JWT.SigningMethod = c.JWTSigningMethod
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.Session.RefreshTTL = c.RefreshTTL
	cfg.Session.ResetTTL = c.ResetTTL
	cfg.RateLimit.Capacity = c.RateLimitCapacity
	cfg.RateLimit.Interval = c.RateLimitInterval
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	switch c.JWTSigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(c.JWTPrivateKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(c.JWTPublicKeyFile)
		if err != nil {
			return cfg, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	default:
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	}

	return cfg, cfg.Validate()
}
