package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/taskauth/internal"
	"github.com/MrEthical07/taskauth/internal/models"
)

// DefaultRefreshTTL is the refresh-token lifetime when none is configured.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// RefreshTokenStore manages the one-live-token-per-principal lifecycle.
type RefreshTokenStore struct {
	repo     RefreshTokenRepository
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewRefreshTokenStore creates a store. A non-positive ttl selects DefaultRefreshTTL.
func NewRefreshTokenStore(repo RefreshTokenRepository, ttl time.Duration, now func() time.Time) *RefreshTokenStore {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	if now == nil {
		now = time.Now
	}
	return &RefreshTokenStore{
		repo:     repo,
		ttl:      ttl,
		now:      now,
		newToken: internal.NewOpaqueToken,
	}
}

// IssueFor returns the principal's live refresh token, creating one when
// none exists. An expired token is deleted and replaced.
func (s *RefreshTokenStore) IssueFor(ctx context.Context, principalID string) (*models.RefreshToken, error) {
	var issued *models.RefreshToken
	err := s.repo.WithPrincipalLock(ctx, principalID, func(ctx context.Context, q RefreshQueries) error {
		existing, err := q.FindByPrincipal(ctx, principalID)
		switch {
		case err == nil:
			if !existing.Expired(s.now()) {
				issued = existing
				return nil
			}
			if err := q.DeleteByToken(ctx, existing.Token); err != nil {
				return err
			}
		case !errors.Is(err, models.ErrNotFound):
			return err
		}

		value, err := s.newToken()
		if err != nil {
			return err
		}
		token := &models.RefreshToken{
			Token:       value,
			PrincipalID: principalID,
			ExpiryDate:  s.now().Add(s.ttl).UTC(),
		}
		if err := q.Insert(ctx, token); err != nil {
			return err
		}
		issued = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// Resolve looks a token up by value without checking expiry.
func (s *RefreshTokenStore) Resolve(ctx context.Context, value string) (*models.RefreshToken, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ErrRefreshNotFound
	}
	token, err := s.repo.FindByToken(ctx, value)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrRefreshNotFound
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// VerifyLive returns token unchanged when it is unexpired. An expired token
// is deleted before ErrRefreshExpired is returned.
func (s *RefreshTokenStore) VerifyLive(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	if !token.Expired(s.now()) {
		return token, nil
	}
	if err := s.repo.DeleteByToken(ctx, token.Token); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return nil, ErrRefreshExpired
}

// RevokeAllFor deletes every refresh token the principal holds.
func (s *RefreshTokenStore) RevokeAllFor(ctx context.Context, principalID string) (int64, error) {
	return s.repo.DeleteByPrincipal(ctx, principalID)
}

// PurgeExpired deletes tokens whose expiry is before now.
func (s *RefreshTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, now)
}
