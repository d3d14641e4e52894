package memory

import (
	"context"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
)

type refreshQueries struct{ t *tx }

func (q refreshQueries) FindByPrincipal(_ context.Context, principalID string) (*models.RefreshToken, error) {
	token, ok := q.t.db.refreshByPrincipal[principalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *q.t.db.refresh[token]
	return &c, nil
}

func (q refreshQueries) Insert(_ context.Context, token *models.RefreshToken) error {
	return q.t.insertRefresh(token)
}

func (q refreshQueries) DeleteByToken(_ context.Context, token string) error {
	if !q.t.deleteRefresh(token) {
		return models.ErrNotFound
	}
	return nil
}

// RefreshTokens returns the refresh-token repository view of db.
func (db *DB) RefreshTokens() stores.RefreshTokenRepository {
	return refreshRepo{db: db}
}

type refreshRepo struct{ db *DB }

// WithPrincipalLock locks the whole DB, which also covers the principal.
func (r refreshRepo) WithPrincipalLock(ctx context.Context, _ string, fn func(ctx context.Context, q stores.RefreshQueries) error) error {
	return r.db.run(ctx, func(t *tx) error {
		return fn(ctx, refreshQueries{t: t})
	})
}

func (r refreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := r.db.run(ctx, func(*tx) error {
		rt, ok := r.db.refresh[token]
		if !ok {
			return models.ErrNotFound
		}
		c := *rt
		out = &c
		return nil
	})
	return out, err
}

func (r refreshRepo) DeleteByToken(ctx context.Context, token string) error {
	return r.db.run(ctx, func(t *tx) error {
		if !t.deleteRefresh(token) {
			return models.ErrNotFound
		}
		return nil
	})
}

func (r refreshRepo) DeleteByPrincipal(ctx context.Context, principalID string) (int64, error) {
	var n int64
	err := r.db.run(ctx, func(t *tx) error {
		if token, ok := r.db.refreshByPrincipal[principalID]; ok && t.deleteRefresh(token) {
			n = 1
		}
		return nil
	})
	return n, err
}

func (r refreshRepo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func(t *tx) error {
		for token, rt := range r.db.refresh {
			if rt.ExpiryDate.Before(now) && t.deleteRefresh(token) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (t *tx) insertRefresh(token *models.RefreshToken) error {
	if _, exists := t.db.refreshByPrincipal[token.PrincipalID]; exists {
		return models.ErrDuplicate
	}
	if _, exists := t.db.refresh[token.Token]; exists {
		return models.ErrDuplicate
	}
	c := *token
	t.db.refresh[c.Token] = &c
	t.db.refreshByPrincipal[c.PrincipalID] = c.Token
	t.undo = append(t.undo, func() {
		delete(t.db.refresh, c.Token)
		delete(t.db.refreshByPrincipal, c.PrincipalID)
	})
	return nil
}

func (t *tx) deleteRefresh(token string) bool {
	rt, ok := t.db.refresh[token]
	if !ok {
		return false
	}
	delete(t.db.refresh, token)
	delete(t.db.refreshByPrincipal, rt.PrincipalID)
	t.undo = append(t.undo, func() {
		t.db.refresh[rt.Token] = rt
		t.db.refreshByPrincipal[rt.PrincipalID] = rt.Token
	})
	return true
}
