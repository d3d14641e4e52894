package taskauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/taskauth/internal/audit"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrEmailDelivery      AuditErrorCode = "email_delivery"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp:   e.now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		Email:       email,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidOrExpiredResetToken),
		errors.Is(err, ErrUnauthenticated):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrPrincipalNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrValidationFailed):
		return auditErrValidation
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrEmailDelivery):
		return auditErrEmailDelivery
	default:
		return auditErrInternal
	}
}
