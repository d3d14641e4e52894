package stores

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
)

var (
	// ErrRefreshNotFound is returned when no refresh token has the given value.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshExpired is returned after an expired refresh token has been deleted.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrResetInvalid is returned when a reset token is unknown, used or expired.
	ErrResetInvalid = errors.New("reset token invalid or expired")
	// ErrPrincipalNotFound is returned when a token is requested for an unknown principal.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// RefreshQueries are the statements available inside a principal-scoped
// refresh transaction.
type RefreshQueries interface {
	FindByPrincipal(ctx context.Context, principalID string) (*models.RefreshToken, error)
	Insert(ctx context.Context, token *models.RefreshToken) error
	DeleteByToken(ctx context.Context, token string) error
}

// RefreshTokenRepository persists refresh tokens.
type RefreshTokenRepository interface {
	// WithPrincipalLock runs fn in a transaction that holds an exclusive
	// lock scoped to principalID until fn returns.
	WithPrincipalLock(ctx context.Context, principalID string, fn func(ctx context.Context, q RefreshQueries) error) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByPrincipal(ctx context.Context, principalID string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// ResetQueries are the statements available inside a reset transaction.
type ResetQueries interface {
	// LockPrincipal locks the principal row, returning models.ErrNotFound
	// when it does not exist.
	LockPrincipal(ctx context.Context, principalID string) error
	DeleteByPrincipal(ctx context.Context, principalID string) (int64, error)
	Insert(ctx context.Context, token *models.PasswordResetToken) error
	// MarkUsed flips used to true only for an unused token whose expiry is
	// after now, returning its principal. No match yields models.ErrNotFound.
	MarkUsed(ctx context.Context, tokenHash string, now time.Time) (string, error)
	UpdatePasswordHash(ctx context.Context, principalID, passwordHash string, now time.Time) error
}

// PasswordResetRepository persists password-reset tokens.
type PasswordResetRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q ResetQueries) error) error
	FindByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}
