package config

import (
	"flag"
	"io"
	"strings"
)

type fileFlags struct {
	json string
	env  string
}

// scanFileFlags picks out -c/-config and -env-file before the other layers
// run, ignoring every other argument.
func scanFileFlags(args []string) fileFlags {
	out := fileFlags{env: ".env"}
	fs := flag.NewFlagSet("files", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&out.json, "config", "", "path to JSON config file")
	fs.StringVar(&out.json, "c", "", "path to JSON config file (short)")
	fs.StringVar(&out.env, "env-file", out.env, "path to .env file")
	_ = fs.Parse(filterArgs(args, []string{"-c", "-config", "--config", "-env-file", "--env-file"}))
	return out
}

// filterArgs keeps only the named flags and their values.
func filterArgs(args []string, allowed []string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		keep[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := keep[name]; ok {
				out = append(out, arg)
			}
			continue
		}
		if _, ok := keep[arg]; ok {
			out = append(out, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, args[i+1])
				i++
			}
		}
	}
	return out
}

// parseFlags overlays command-line flags on cfg.
//
//	-a string    HTTP listen address
//	-d string    PostgreSQL DSN
//	-r string    Redis address
//	-s string    JWT HMAC secret
//	-l string    log level
//	-access-ttl, -refresh-ttl, -reset-ttl duration
//	-rate-capacity int, -rate-interval duration
//	-migrate     run migrations on start
//	-dev         development logging
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("taskauth-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "path to JSON config file (short)")
	fs.StringVar(&ignored, "config", "", "path to JSON config file")
	fs.StringVar(&ignored, "env-file", "", "path to .env file")

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN, empty for in-memory storage")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address for the shared rate limiter")
	fs.StringVar(&cfg.JWTSecret, "s", cfg.JWTSecret, "JWT HMAC secret")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTTL, "refresh-ttl", cfg.RefreshTTL, "refresh token lifetime")
	fs.DurationVar(&cfg.ResetTTL, "reset-ttl", cfg.ResetTTL, "password reset token lifetime")
	fs.IntVar(&cfg.RateLimitCapacity, "rate-capacity", cfg.RateLimitCapacity, "requests admitted per client per interval")
	fs.DurationVar(&cfg.RateLimitInterval, "rate-interval", cfg.RateLimitInterval, "rate limit window")
	fs.BoolVar(&cfg.MigrateOnStart, "migrate", cfg.MigrateOnStart, "run database migrations on start")
	fs.BoolVar(&cfg.LogDev, "dev", cfg.LogDev, "development logging")

	return fs.Parse(args)
}
