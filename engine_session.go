package taskauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Register creates an enabled, unlocked principal and logs it in.
//
// Shape violations return a *ValidationError. A taken e-mail or username
// returns ErrEmailTaken or ErrUsernameTaken and nothing is written.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthBundle, error) {
	if e.unavailable() || e.principals == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.validateRegister(req); err != nil {
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, audit.EventRegister, false, "", "", err, nil)
		return nil, err
	}

	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	taken, err := e.principals.EmailExists(ctx, email)
	if err != nil {
		return nil, e.internalError("email lookup failed", err)
	}
	if taken {
		return nil, e.registerDuplicate(ctx, email, ErrEmailTaken)
	}
	taken, err = e.principals.UsernameExists(ctx, username)
	if err != nil {
		return nil, e.internalError("username lookup failed", err)
	}
	if taken {
		return nil, e.registerDuplicate(ctx, email, ErrUsernameTaken)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, e.internalError("password hashing failed", err)
	}

	now := e.now().UTC()
	p := &Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.principals.CreatePrincipal(ctx, p); err != nil {
		switch {
		case errors.Is(err, models.ErrEmailConflict):
			return nil, e.registerDuplicate(ctx, email, ErrEmailTaken)
		case errors.Is(err, models.ErrUsernameConflict):
			return nil, e.registerDuplicate(ctx, email, ErrUsernameTaken)
		}
		return nil, e.internalError("principal insert failed", err)
	}

	b, err := e.issueBundle(ctx, p)
	if err != nil {
		e.logger.Error("token issuance after register failed", zap.String("principal_id", p.ID), zap.Error(err))
		// Register is all or nothing.
		if derr := e.principals.DeletePrincipal(context.WithoutCancel(ctx), p.ID); derr != nil {
			e.logger.Error("principal rollback after register failed", zap.String("principal_id", p.ID), zap.Error(derr))
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, audit.EventRegister, true, p.ID, email, nil, nil)
	return b, nil
}

func (e *Engine) registerDuplicate(ctx context.Context, email string, err error) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, audit.EventRegister, false, "", email, err, nil)
	return err
}

// Login authenticates an e-mail and password pair. An unknown e-mail and a
// wrong password both return ErrInvalidCredentials. A principal that is
// still holding a live refresh token gets that same token back.
func (e *Engine) Login(ctx context.Context, email, pass string) (*AuthBundle, error) {
	if e.unavailable() || e.verifier == nil {
		return nil, ErrEngineNotReady
	}

	verr := &ValidationError{}
	if strings.TrimSpace(email) == "" {
		verr.add("email", "Email is required")
	}
	if pass == "" {
		verr.add("password", "Password is required")
	}
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	res, err := e.verifier.VerifyCredentials(ctx, email, pass)
	if err != nil {
		return nil, e.internalError("credential check failed", err)
	}

	switch res.Outcome {
	case CredentialsAccepted:
	case CredentialsLocked:
		return nil, e.loginRejected(ctx, email, MetricLoginLocked, ErrAccountLocked)
	case CredentialsDisabled:
		return nil, e.loginRejected(ctx, email, MetricLoginDisabled, ErrAccountDisabled)
	default:
		return nil, e.loginRejected(ctx, email, MetricLoginFailure, ErrInvalidCredentials)
	}
	if res.Principal == nil {
		return nil, e.internalError("credential verifier accepted without a principal", errors.New("nil principal"))
	}

	b, err := e.issueBundle(ctx, res.Principal)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.EventLogin, true, res.Principal.ID, email, nil, nil)
	return b, nil
}

func (e *Engine) loginRejected(ctx context.Context, email string, id MetricID, err error) error {
	e.metricInc(id)
	e.emitAudit(ctx, audit.EventLogin, false, "", email, err, nil)
	return err
}

// Refresh signs a new access token from a live refresh token. The refresh
// token itself is returned unchanged. An expired token is deleted and
// reported as ErrRefreshTokenExpired.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthBundle, error) {
	if e.unavailable() || e.refresh == nil {
		return nil, ErrEngineNotReady
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "refresh_token", Message: "Refresh token is required"}}}
	}

	rt, err := e.refresh.Resolve(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, stores.ErrRefreshNotFound) {
			return nil, e.refreshRejected(ctx, "", MetricRefreshInvalid, ErrInvalidRefreshToken)
		}
		return nil, e.internalError("refresh token lookup failed", err)
	}
	rt, err = e.refresh.VerifyLive(ctx, rt)
	if err != nil {
		if errors.Is(err, stores.ErrRefreshExpired) {
			return nil, e.refreshRejected(ctx, "", MetricRefreshExpired, ErrRefreshTokenExpired)
		}
		return nil, e.internalError("refresh token check failed", err)
	}

	p, err := e.principals.FindPrincipalByID(ctx, rt.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, e.refreshRejected(ctx, rt.PrincipalID, MetricRefreshInvalid, ErrPrincipalNotFound)
		}
		return nil, e.internalError("principal lookup failed", err)
	}

	access, _, err := e.jwtManager.Issue(p.Email, 0)
	if err != nil {
		return nil, e.internalError("access token signing failed", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.EventRefresh, true, p.ID, p.Email, nil, nil)
	return e.bundle(access, rt.Token, p), nil
}

func (e *Engine) refreshRejected(ctx context.Context, principalID string, id MetricID, err error) error {
	e.metricInc(id)
	e.emitAudit(ctx, audit.EventRefresh, false, principalID, "", err, nil)
	return err
}

// Logout deletes the principal's refresh tokens. Access tokens already
// issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, principalID string) error {
	if e.unavailable() || e.refresh == nil {
		return ErrEngineNotReady
	}
	if _, err := e.refresh.RevokeAllFor(ctx, principalID); err != nil {
		return e.internalError("refresh token revocation failed", err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, audit.EventLogout, true, principalID, "", nil, nil)
	return nil
}

// Profile returns the public view of the principal with the given e-mail.
func (e *Engine) Profile(ctx context.Context, email string) (*PrincipalSummary, error) {
	if e.unavailable() || e.principals == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.principals.FindPrincipalByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, e.internalError("principal lookup failed", err)
	}
	s := summaryOf(p)
	return &s, nil
}

// internalError logs cause in full and returns the opaque ErrUnexpected.
func (e *Engine) internalError(msg string, cause error) error {
	e.logger.Error(msg, zap.Error(cause))
	return unexpected(cause)
}
