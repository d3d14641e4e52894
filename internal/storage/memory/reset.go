package memory

import (
	"context"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
)

// ResetTokens returns the reset-token repository view of db.
func (db *DB) ResetTokens() stores.PasswordResetRepository {
	return resetRepo{db: db}
}

type resetRepo struct{ db *DB }

type resetQueries struct{ t *tx }

func (r resetRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, q stores.ResetQueries) error) error {
	return r.db.run(ctx, func(t *tx) error {
		return fn(ctx, resetQueries{t: t})
	})
}

func (r resetRepo) FindByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	var out *models.PasswordResetToken
	err := r.db.run(ctx, func(*tx) error {
		rt, ok := r.db.resets[tokenHash]
		if !ok {
			return models.ErrNotFound
		}
		c := *rt
		out = &c
		return nil
	})
	return out, err
}

func (r resetRepo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func(t *tx) error {
		for hash, rt := range r.db.resets {
			if rt.ExpiryDate.Before(now) {
				t.deleteReset(hash)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (q resetQueries) LockPrincipal(_ context.Context, principalID string) error {
	if _, ok := q.t.db.principals[principalID]; !ok {
		return models.ErrNotFound
	}
	return nil
}

func (q resetQueries) DeleteByPrincipal(_ context.Context, principalID string) (int64, error) {
	var n int64
	for hash, rt := range q.t.db.resets {
		if rt.PrincipalID == principalID {
			q.t.deleteReset(hash)
			n++
		}
	}
	return n, nil
}

func (q resetQueries) Insert(_ context.Context, token *models.PasswordResetToken) error {
	if _, exists := q.t.db.resets[token.TokenHash]; exists {
		return models.ErrDuplicate
	}
	c := *token
	q.t.db.resets[c.TokenHash] = &c
	q.t.undo = append(q.t.undo, func() { delete(q.t.db.resets, c.TokenHash) })
	return nil
}

func (q resetQueries) MarkUsed(_ context.Context, tokenHash string, now time.Time) (string, error) {
	rt, ok := q.t.db.resets[tokenHash]
	if !ok || !rt.Valid(now) {
		return "", models.ErrNotFound
	}
	rt.Used = true
	q.t.undo = append(q.t.undo, func() { rt.Used = false })
	return rt.PrincipalID, nil
}

func (q resetQueries) UpdatePasswordHash(_ context.Context, principalID, passwordHash string, now time.Time) error {
	return q.t.updatePasswordHash(principalID, passwordHash, now)
}

func (t *tx) deleteReset(hash string) {
	rt := t.db.resets[hash]
	delete(t.db.resets, hash)
	t.undo = append(t.undo, func() { t.db.resets[hash] = rt })
}
