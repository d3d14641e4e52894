package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/internal/stores"
)

// ResetTokens returns the password-reset repository backed by d.
func (d *DB) ResetTokens() stores.PasswordResetRepository {
	return resetRepo{d: d}
}

type resetRepo struct{ d *DB }

type resetQueries struct{ tx *sqlx.Tx }

func (r resetRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, q stores.ResetQueries) error) error {
	return r.d.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, resetQueries{tx: tx})
	})
}

func (r resetRepo) FindByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	var rt models.PasswordResetToken
	err := sqlx.GetContext(ctx, r.d.db, &rt,
		`SELECT token_hash, principal_id, expiry_date, used FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &rt, nil
}

func (r resetRepo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	return execCount(ctx, r.d.db, `DELETE FROM password_reset_tokens WHERE expiry_date < $1`, now)
}

// LockPrincipal holds the principal row until the transaction ends, which
// serialises concurrent Initiate calls for one principal.
func (q resetQueries) LockPrincipal(ctx context.Context, principalID string) error {
	var id string
	if err := sqlx.GetContext(ctx, q.tx, &id, `SELECT id FROM principals WHERE id = $1 FOR UPDATE`, principalID); err != nil {
		return wrapErr(err)
	}
	return nil
}

func (q resetQueries) DeleteByPrincipal(ctx context.Context, principalID string) (int64, error) {
	return execCount(ctx, q.tx, `DELETE FROM password_reset_tokens WHERE principal_id = $1`, principalID)
}

func (q resetQueries) Insert(ctx context.Context, token *models.PasswordResetToken) error {
	_, err := q.tx.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token_hash, principal_id, expiry_date, used) VALUES ($1, $2, $3, $4)`,
		token.TokenHash, token.PrincipalID, token.ExpiryDate, token.Used)
	return wrapErr(err)
}

func (q resetQueries) MarkUsed(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var principalID string
	err := sqlx.GetContext(ctx, q.tx, &principalID,
		`UPDATE password_reset_tokens SET used = TRUE
		 WHERE token_hash = $1 AND used = FALSE AND expiry_date > $2
		 RETURNING principal_id`, tokenHash, now)
	if err != nil {
		return "", wrapErr(err)
	}
	return principalID, nil
}

func (q resetQueries) UpdatePasswordHash(ctx context.Context, principalID, passwordHash string, now time.Time) error {
	return updatePasswordHash(ctx, q.tx, principalID, passwordHash, now)
}
