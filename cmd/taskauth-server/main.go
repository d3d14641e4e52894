// Command taskauth-server serves the taskauth HTTP API.
//
// Configuration comes from defaults, an optional JSON file (-c), a .env file
// plus the environment, and flags. With no DATABASE_URL the server keeps
// everything in memory; with no SMTP_HOST reset links are logged.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/config"
	"github.com/MrEthical07/taskauth/internal/httpapi"
	"github.com/MrEthical07/taskauth/internal/janitor"
	"github.com/MrEthical07/taskauth/internal/logging"
	"github.com/MrEthical07/taskauth/internal/mail"
	"github.com/MrEthical07/taskauth/internal/storage/memory"
	"github.com/MrEthical07/taskauth/internal/storage/postgres"
	"github.com/MrEthical07/taskauth/metrics/export/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := logging.New(logging.Config{
		Level: cfg.LogLevel,
		Dev:   cfg.LogDev,
		File:  cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	builder := taskauth.New().
		WithConfig(engineCfg).
		WithLogger(logger).
		WithStorage(storage).
		WithEmailSender(sender)

	if cfg.AuditEnabled && cfg.AuditFile != "" {
		f, err := logging.NewRotatingFile(cfg.AuditFile, 0, 0)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer f.Close()
		builder.WithAuditSink(audit.NewJSONWriterSink(f))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder.WithRedis(client)
		logger.Info("rate limiter backed by redis", zap.String("addr", cfg.RedisAddr))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	jan := janitor.New(engine, cfg.JanitorInterval, logger)
	jan.Start(ctx)
	defer jan.Stop()

	opts := httpapi.Options{
		Logger:            logger,
		TrustForwardedFor: cfg.TrustForwardedFor,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = prometheus.New(engine).Handler()
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (taskauth.Storage, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		return memory.New(), func() {}, nil
	}

	sqlDB, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	db := postgres.New(sqlDB)
	if cfg.MigrateOnStart {
		if err := db.RunMigrations(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

func newSender(cfg *config.Config, logger *zap.Logger) (taskauth.EmailSender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, password reset links will be logged")
		return mail.NewLogSender(cfg.ResetURL, logger), nil
	}
	s, err := mail.NewSMTPSender(mail.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		Timeout:   cfg.SMTPTimeout,
		From:      cfg.MailFrom,
		FromName:  cfg.MailFromName,
		ResetURL:  cfg.ResetURL,
		ExpiresIn: cfg.ResetTTL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return s, nil
}
