package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{AccessTTL: 15 * time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret, Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newHSManager(t, nil)

	token, exp, err := m.Issue("alice@example.com", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if until := time.Until(exp); until < 14*time.Minute || until > 15*time.Minute {
		t.Fatalf("unexpected expiry distance %v", until)
	}

	sub, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "alice@example.com" {
		t.Fatalf("expected subject alice@example.com, got %q", sub)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	clock := issuedAt
	m := newHSManager(t, func() time.Time { return clock })

	token, _, err := m.Issue("bob@example.com", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = issuedAt.Add(2 * time.Minute)
	if _, err := m.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsTamperedAndGarbage(t *testing.T) {
	m := newHSManager(t, nil)
	token, _, err := m.Issue("carol@example.com", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	for name, input := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-token",
		"tampered": tampered,
	} {
		if _, err := m.Verify(input); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	m := newHSManager(t, nil)
	other, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-another-secret-xx")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := other.Issue("dave@example.com", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "eve@example.com",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	m := newHSManager(t, nil)
	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestEd25519IssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "taskauth",
		Audience:      "tasks-api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.Issue("frank@example.com", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(access); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	sign := func(c AccessClaims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(iss, aud string, exp time.Time) AccessClaims {
		return AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "frank@example.com",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(exp),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
	}

	if _, err := m.Verify(sign(base("other", "tasks-api", time.Now().Add(time.Minute)))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
	if _, err := m.Verify(sign(base("taskauth", "other-api", time.Now().Add(time.Minute)))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong audience to fail, got %v", err)
	}
	if _, err := m.Verify(sign(base("taskauth", "tasks-api", time.Now().Add(-15*time.Second)))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Verify(sign(base("taskauth", "tasks-api", time.Now().Add(-2*time.Minute)))); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestNewManagerRejectsBadKeys(t *testing.T) {
	cases := []Config{
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: []byte("nope")},
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: testSecret},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected configuration error", i)
		}
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, _, err := m.Issue("x@example.com", 0); err == nil {
		t.Fatal("expected issue without private key to fail")
	}
}
