package taskauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/taskauth/internal/audit"
)

func TestSetAccountLockedRevokesRefreshTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := env.register(t, "alice", "alice@example.com", "secret-pass")

	if err := env.engine.SetAccountLocked(ctx, reg.User.ID, true); err != nil {
		t.Fatalf("SetAccountLocked failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("lock must revoke refresh tokens, got %v", err)
	}

	if err := env.engine.SetAccountLocked(ctx, reg.User.ID, false); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "secret-pass"); err != nil {
		t.Fatalf("login after unlock failed: %v", err)
	}
}

func TestAccountStatusUnknownPrincipal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.SetAccountLocked(ctx, "missing", true); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
	if err := env.engine.SetAccountEnabled(ctx, "missing", false); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestAuditEventsReachSink(t *testing.T) {
	sink := audit.NewChannelSink(16)
	env := newTestEnv(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	if _, err := env.engine.Register(ctx, RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret-pass",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	want := []struct {
		eventType string
		success   bool
		code      string
	}{
		{audit.EventRegister, true, ""},
		{audit.EventLogin, false, string(auditErrInvalidCredentials)},
	}
	for i, w := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != w.eventType || ev.Success != w.success || ev.Error != w.code {
				t.Fatalf("event %d: unexpected %+v", i, ev)
			}
			if ev.IP != "203.0.113.9" || ev.Email != "alice@example.com" {
				t.Fatalf("event %d: missing context %+v", i, ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                           "",
		ErrAccountLocked:              auditErrAccountLocked,
		ErrUsernameTaken:              auditErrDuplicate,
		ErrRefreshTokenExpired:        auditErrExpiredToken,
		ErrInvalidOrExpiredResetToken: auditErrInvalidToken,
		&ValidationError{}:            auditErrValidation,
		errors.New("boom"):            auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
