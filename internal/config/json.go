package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration accepts either a Go duration string ("15m") or integer
// nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// fileConfig is the JSON shape of Config. Fields absent from the file keep
// the value they had before parsing.
type fileConfig struct {
	HTTPAddr          string   `json:"http_addr"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
	DatabaseDSN       string   `json:"database_dsn"`
	MigrateOnStart    bool     `json:"migrate_on_start"`
	RedisAddr         string   `json:"redis_addr"`
	RedisPassword     string   `json:"redis_password"`
	RedisDB           int      `json:"redis_db"`
	JWTSigningMethod  string   `json:"jwt_signing_method"`
	JWTSecret         string   `json:"jwt_secret"`
	JWTPrivateKeyFile string   `json:"jwt_private_key_file"`
	JWTPublicKeyFile  string   `json:"jwt_public_key_file"`
	JWTIssuer         string   `json:"jwt_issuer"`
	JWTAudience       string   `json:"jwt_audience"`
	AccessTTL         Duration `json:"access_ttl"`
	RefreshTTL        Duration `json:"refresh_ttl"`
	ResetTTL          Duration `json:"reset_ttl"`
	RateLimitCapacity int      `json:"rate_limit_capacity"`
	RateLimitInterval Duration `json:"rate_limit_interval"`
	TrustForwardedFor bool     `json:"trust_forwarded_for"`
	LogLevel          string   `json:"log_level"`
	LogDev            bool     `json:"log_dev"`
	LogFile           string   `json:"log_file"`
	SMTPHost          string   `json:"smtp_host"`
	SMTPPort          int      `json:"smtp_port"`
	SMTPUsername      string   `json:"smtp_username"`
	SMTPPassword      string   `json:"smtp_password"`
	SMTPTimeout       Duration `json:"smtp_timeout"`
	MailFrom          string   `json:"mail_from"`
	MailFromName      string   `json:"mail_from_name"`
	ResetURL          string   `json:"reset_url"`
	JanitorInterval   Duration `json:"janitor_interval"`
	AuditEnabled      bool     `json:"audit_enabled"`
	AuditFile         string   `json:"audit_file"`
	MetricsEnabled    bool     `json:"metrics_enabled"`
}

func parseJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := fileConfig{
		HTTPAddr:          cfg.HTTPAddr,
		ShutdownTimeout:   Duration(cfg.ShutdownTimeout),
		DatabaseDSN:       cfg.DatabaseDSN,
		MigrateOnStart:    cfg.MigrateOnStart,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		RedisDB:           cfg.RedisDB,
		JWTSigningMethod:  cfg.JWTSigningMethod,
		JWTSecret:         cfg.JWTSecret,
		JWTPrivateKeyFile: cfg.JWTPrivateKeyFile,
		JWTPublicKeyFile:  cfg.JWTPublicKeyFile,
		JWTIssuer:         cfg.JWTIssuer,
		JWTAudience:       cfg.JWTAudience,
		AccessTTL:         Duration(cfg.AccessTTL),
		RefreshTTL:        Duration(cfg.RefreshTTL),
		ResetTTL:          Duration(cfg.ResetTTL),
		RateLimitCapacity: cfg.RateLimitCapacity,
		RateLimitInterval: Duration(cfg.RateLimitInterval),
		TrustForwardedFor: cfg.TrustForwardedFor,
		LogLevel:          cfg.LogLevel,
		LogDev:            cfg.LogDev,
		LogFile:           cfg.LogFile,
		SMTPHost:          cfg.SMTPHost,
		SMTPPort:          cfg.SMTPPort,
		SMTPUsername:      cfg.SMTPUsername,
		SMTPPassword:      cfg.SMTPPassword,
		SMTPTimeout:       Duration(cfg.SMTPTimeout),
		MailFrom:          cfg.MailFrom,
		MailFromName:      cfg.MailFromName,
		ResetURL:          cfg.ResetURL,
		JanitorInterval:   Duration(cfg.JanitorInterval),
		AuditEnabled:      cfg.AuditEnabled,
		AuditFile:         cfg.AuditFile,
		MetricsEnabled:    cfg.MetricsEnabled,
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.HTTPAddr = fc.HTTPAddr
	cfg.ShutdownTimeout = time.Duration(fc.ShutdownTimeout)
	cfg.DatabaseDSN = fc.DatabaseDSN
	cfg.MigrateOnStart = fc.MigrateOnStart
	cfg.RedisAddr = fc.RedisAddr
	cfg.RedisPassword = fc.RedisPassword
	cfg.RedisDB = fc.RedisDB
	cfg.JWTSigningMethod = fc.JWTSigningMethod
	cfg.JWTSecret = fc.JWTSecret
	cfg.JWTPrivateKeyFile = fc.JWTPrivateKeyFile
	cfg.JWTPublicKeyFile = fc.JWTPublicKeyFile
	cfg.JWTIssuer = fc.JWTIssuer
	cfg.JWTAudience = fc.JWTAudience
	cfg.AccessTTL = time.Duration(fc.AccessTTL)
	cfg.RefreshTTL = time.Duration(fc.RefreshTTL)
	cfg.ResetTTL = time.Duration(fc.ResetTTL)
	cfg.RateLimitCapacity = fc.RateLimitCapacity
	cfg.RateLimitInterval = time.Duration(fc.RateLimitInterval)
	cfg.TrustForwardedFor = fc.TrustForwardedFor
	cfg.LogLevel = fc.LogLevel
	cfg.LogDev = fc.LogDev
	cfg.LogFile = fc.LogFile
	cfg.SMTPHost = fc.SMTPHost
	cfg.SMTPPort = fc.SMTPPort
	cfg.SMTPUsername = fc.SMTPUsername
	cfg.SMTPPassword = fc.SMTPPassword
	cfg.SMTPTimeout = time.Duration(fc.SMTPTimeout)
	cfg.MailFrom = fc.MailFrom
	cfg.MailFromName = fc.MailFromName
	cfg.ResetURL = fc.ResetURL
	cfg.JanitorInterval = time.Duration(fc.JanitorInterval)
	cfg.AuditEnabled = fc.AuditEnabled
	cfg.AuditFile = fc.AuditFile
	cfg.MetricsEnabled = fc.MetricsEnabled
	return nil
}
