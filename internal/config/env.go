package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type lookupFunc func(string) (string, bool)

// withDotenv layers the variables of a .env file under lookup. Variables
// already present in the environment win. A missing file is not an error.
func withDotenv(path string, lookup lookupFunc) (lookupFunc, error) {
	if path == "" {
		return lookup, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lookup, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func parseEnv(cfg *Config, lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.str("HTTP_ADDR", &cfg.HTTPAddr)
	r.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	r.str("DATABASE_URL", &cfg.DatabaseDSN)
	r.boolean("MIGRATE_ON_START", &cfg.MigrateOnStart)
	r.str("REDIS_ADDR", &cfg.RedisAddr)
	r.str("REDIS_PASSWORD", &cfg.RedisPassword)
	r.integer("REDIS_DB", &cfg.RedisDB)
	r.str("JWT_SIGNING_METHOD", &cfg.JWTSigningMethod)
	r.str("JWT_SECRET", &cfg.JWTSecret)
	r.str("JWT_PRIVATE_KEY_FILE", &cfg.JWTPrivateKeyFile)
	r.str("JWT_PUBLIC_KEY_FILE", &cfg.JWTPublicKeyFile)
	r.str("JWT_ISSUER", &cfg.JWTIssuer)
	r.str("JWT_AUDIENCE", &cfg.JWTAudience)
	r.duration("JWT_ACCESS_TTL", &cfg.AccessTTL)
	r.duration("JWT_REFRESH_TTL", &cfg.RefreshTTL)
	r.duration("RESET_TOKEN_TTL", &cfg.ResetTTL)
	r.integer("RATE_LIMIT_CAPACITY", &cfg.RateLimitCapacity)
	r.duration("RATE_LIMIT_INTERVAL", &cfg.RateLimitInterval)
	r.boolean("TRUST_FORWARDED_FOR", &cfg.TrustForwardedFor)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.boolean("LOG_DEV", &cfg.LogDev)
	r.str("LOG_FILE", &cfg.LogFile)
	r.str("SMTP_HOST", &cfg.SMTPHost)
	r.integer("SMTP_PORT", &cfg.SMTPPort)
	r.str("SMTP_USERNAME", &cfg.SMTPUsername)
	r.str("SMTP_PASSWORD", &cfg.SMTPPassword)
	r.duration("SMTP_TIMEOUT", &cfg.SMTPTimeout)
	r.str("MAIL_FROM", &cfg.MailFrom)
	r.str("MAIL_FROM_NAME", &cfg.MailFromName)
	r.str("RESET_URL", &cfg.ResetURL)
	r.duration("JANITOR_INTERVAL", &cfg.JanitorInterval)
	r.boolean("AUDIT_ENABLED", &cfg.AuditEnabled)
	r.str("AUDIT_FILE", &cfg.AuditFile)
	r.boolean("METRICS_ENABLED", &cfg.MetricsEnabled)

	return errors.Join(r.errs...)
}
