package taskauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
	"go.uber.org/zap"
)

// InitiatePasswordReset issues a reset token for the principal with the given
// e-mail, replacing any earlier one, and mails it. Delivery failures are
// returned wrapped in ErrEmailDelivery.
func (e *Engine) InitiatePasswordReset(ctx context.Context, email string) error {
	if e.unavailable() || e.resets == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	verr := &ValidationError{}
	validateEmail(verr, email)
	if err := verr.errOrNil(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	p, err := e.principals.FindPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			e.emitAudit(ctx, audit.EventPasswordResetIssued, false, "", email, ErrPrincipalNotFound, nil)
			return ErrPrincipalNotFound
		}
		return e.internalError("principal lookup failed", err)
	}

	token, err := e.resets.Initiate(ctx, p.ID)
	if err != nil {
		if errors.Is(err, stores.ErrPrincipalNotFound) {
			return ErrPrincipalNotFound
		}
		return e.internalError("reset token issuance failed", err)
	}

	if err := e.mailer.SendPasswordReset(ctx, p.Email, token); err != nil {
		e.logger.Error("password reset email not delivered", zap.String("principal_id", p.ID), zap.Error(err))
		wrapped := fmt.Errorf("%w: %v", ErrEmailDelivery, err)
		e.emitAudit(ctx, audit.EventPasswordResetIssued, false, p.ID, email, wrapped, nil)
		return wrapped
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, audit.EventPasswordResetIssued, true, p.ID, email, nil, nil)
	return nil
}

// VerifyResetToken reports whether token is unused and unexpired. It does
// not consume the token.
func (e *Engine) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	if e.unavailable() || e.resets == nil {
		return false, ErrEngineNotReady
	}
	ok, err := e.resets.IsValid(ctx, strings.TrimSpace(token))
	if err != nil {
		return false, e.internalError("reset token lookup failed", err)
	}
	return ok, nil
}

// ResetPassword consumes token and sets the owner's password. Every refresh
// token the owner holds is revoked afterwards. A token can be consumed once.
// When revocation fails the new password is already stored and ErrUnexpected
// is returned, so the caller knows old sessions may still be live.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e.unavailable() || e.resets == nil {
		return ErrEngineNotReady
	}

	token = strings.TrimSpace(token)
	verr := &ValidationError{}
	if token == "" {
		verr.add("token", "Token is required")
	}
	e.validatePassword(verr, "new_password", newPassword)
	if err := verr.errOrNil(); err != nil {
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return e.internalError("password hashing failed", err)
	}

	principalID, err := e.resets.Consume(ctx, token, hash)
	if err != nil {
		if errors.Is(err, stores.ErrResetInvalid) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, audit.EventPasswordReset, false, "", "", ErrInvalidOrExpiredResetToken, nil)
			return ErrInvalidOrExpiredResetToken
		}
		return e.internalError("reset token consumption failed", err)
	}

	if _, err := e.refresh.RevokeAllFor(ctx, principalID); err != nil {
		e.logger.Error("refresh revocation after password reset failed",
			zap.String("principal_id", principalID), zap.Error(err))
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, audit.EventPasswordReset, false, principalID, "", err, nil)
		return unexpected(err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, audit.EventPasswordReset, true, principalID, "", nil, nil)
	return nil
}
