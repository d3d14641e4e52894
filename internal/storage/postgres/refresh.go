package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
)

// RefreshTokens returns the refresh-token repository backed by d.
func (d *DB) RefreshTokens() stores.RefreshTokenRepository {
	return refreshRepo{d: d}
}

type refreshRepo struct{ d *DB }

type refreshQueries struct{ tx *sqlx.Tx }

// WithPrincipalLock takes a transaction-scoped advisory lock keyed by the
// principal id, so concurrent issuers for one principal run one at a time.
func (r refreshRepo) WithPrincipalLock(ctx context.Context, principalID string, fn func(ctx context.Context, q stores.RefreshQueries) error) error {
	return r.d.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, principalID); err != nil {
			return wrapErr(err)
		}
		return fn(ctx, refreshQueries{tx: tx})
	})
}

func (r refreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return findRefresh(ctx, r.d.db, `SELECT token, principal_id, expiry_date FROM refresh_tokens WHERE token = $1`, token)
}

func (r refreshRepo) DeleteByToken(ctx context.Context, token string) error {
	return deleteRefresh(ctx, r.d.db, token)
}

func (r refreshRepo) DeleteByPrincipal(ctx context.Context, principalID string) (int64, error) {
	return execCount(ctx, r.d.db, `DELETE FROM refresh_tokens WHERE principal_id = $1`, principalID)
}

func (r refreshRepo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	return execCount(ctx, r.d.db, `DELETE FROM refresh_tokens WHERE expiry_date < $1`, now)
}

func (q refreshQueries) FindByPrincipal(ctx context.Context, principalID string) (*models.RefreshToken, error) {
	return findRefresh(ctx, q.tx, `SELECT token, principal_id, expiry_date FROM refresh_tokens WHERE principal_id = $1`, principalID)
}

func (q refreshQueries) Insert(ctx context.Context, token *models.RefreshToken) error {
	_, err := q.tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, principal_id, expiry_date) VALUES ($1, $2, $3)`,
		token.Token, token.PrincipalID, token.ExpiryDate)
	return wrapErr(err)
}

func (q refreshQueries) DeleteByToken(ctx context.Context, token string) error {
	return deleteRefresh(ctx, q.tx, token)
}

func findRefresh(ctx context.Context, q sqlx.QueryerContext, query string, arg any) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := sqlx.GetContext(ctx, q, &rt, query, arg); err != nil {
		return nil, wrapErr(err)
	}
	return &rt, nil
}

func deleteRefresh(ctx context.Context, q sqlx.ExecerContext, token string) error {
	n, err := execCount(ctx, q, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func execCount(ctx context.Context, q sqlx.ExecerContext, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

