package taskauth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown e-mail or a
	// wrong password. Both cases return this same error.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountDisabled is returned by Login for a disabled principal.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrAccountLocked is returned by Login for a locked principal.
	ErrAccountLocked = errors.New("account is locked")
	// ErrEmailTaken is returned by Register when the e-mail is in use.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrUsernameTaken is returned by Register when the username is in use.
	ErrUsernameTaken = errors.New("this username is already taken")
	// ErrInvalidRefreshToken is returned by Refresh for an unknown token value.
	ErrInvalidRefreshToken = errors.New("refresh token is not in database")
	// ErrRefreshTokenExpired is returned by Refresh after deleting an expired token.
	ErrRefreshTokenExpired = errors.New("refresh token was expired, please make a new signin request")
	// ErrInvalidOrExpiredResetToken is returned for unknown, used or expired reset tokens.
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	// ErrRateLimitExceeded is returned when a caller has used up its request budget.
	ErrRateLimitExceeded = errors.New("too many requests")
	// ErrUnauthenticated is returned when a bearer token is missing, invalid or expired.
	ErrUnauthenticated = errors.New("full authentication is required to access this resource")
	// ErrPrincipalNotFound is returned when an operation names a principal that does not exist.
	ErrPrincipalNotFound = errors.New("user not found")
	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrEmailDelivery wraps EmailSender failures.
	ErrEmailDelivery = errors.New("failed to send email")
	// ErrUnexpected wraps backend failures. Its message is safe to show to callers;
	// the wrapped cause is not.
	ErrUnexpected = errors.New("an unexpected error occurred")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func unexpected(err error) error {
	return fmt.Errorf("%w: %v", ErrUnexpected, err)
}
