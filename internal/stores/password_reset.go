package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/taskauth/internal"
	"github.com/MrEthical07/taskauth/internal/models"
)

// DefaultResetTTL is how long a password-reset token stays valid.
const DefaultResetTTL = time.Hour

// PasswordResetStore manages one-time password-reset tokens.
type PasswordResetStore struct {
	repo     PasswordResetRepository
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewPasswordResetStore creates a store. A non-positive ttl selects DefaultResetTTL.
func NewPasswordResetStore(repo PasswordResetRepository, ttl time.Duration, now func() time.Time) *PasswordResetStore {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PasswordResetStore{
		repo:     repo,
		ttl:      ttl,
		now:      now,
		newToken: internal.NewOpaqueToken,
	}
}

// Initiate discards the principal's earlier reset tokens and issues a new
// one. The plaintext value is returned once and never stored.
func (s *PasswordResetStore) Initiate(ctx context.Context, principalID string) (string, error) {
	value, err := s.newToken()
	if err != nil {
		return "", err
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context, q ResetQueries) error {
		if err := q.LockPrincipal(ctx, principalID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return ErrPrincipalNotFound
			}
			return err
		}
		if _, err := q.DeleteByPrincipal(ctx, principalID); err != nil {
			return err
		}
		return q.Insert(ctx, &models.PasswordResetToken{
			TokenHash:   internal.HashToken(value),
			PrincipalID: principalID,
			ExpiryDate:  s.now().Add(s.ttl).UTC(),
		})
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// IsValid reports whether value names an unused, unexpired token.
func (s *PasswordResetStore) IsValid(ctx context.Context, value string) (bool, error) {
	if strings.TrimSpace(value) == "" {
		return false, nil
	}
	token, err := s.repo.FindByHash(ctx, internal.HashToken(value))
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return token.Valid(s.now()), nil
}

// Consume marks the token used and stores newPasswordHash for its owner in
// one transaction, returning the owner's id. Only one call per token value
// can succeed.
func (s *PasswordResetStore) Consume(ctx context.Context, value, newPasswordHash string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", ErrResetInvalid
	}

	var principalID string
	err := s.repo.WithinTx(ctx, func(ctx context.Context, q ResetQueries) error {
		now := s.now()
		id, err := q.MarkUsed(ctx, internal.HashToken(value), now)
		if errors.Is(err, models.ErrNotFound) {
			return ErrResetInvalid
		}
		if err != nil {
			return err
		}
		if err := q.UpdatePasswordHash(ctx, id, newPasswordHash, now); err != nil {
			return err
		}
		principalID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return principalID, nil
}

// PurgeExpired deletes tokens whose expiry is before now, used or not.
func (s *PasswordResetStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, now)
}
