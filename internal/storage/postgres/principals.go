package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/taskauth/internal/models"
)

const principalColumns = `id, username, email, password_hash, enabled, locked, created_at, updated_at`

// CreatePrincipal inserts p. Unique violations map to models.ErrEmailConflict
// and models.ErrUsernameConflict.
func (d *DB) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	query := `INSERT INTO principals (` + principalColumns + `)
		VALUES (:id, :username, :email, :password_hash, :enabled, :locked, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, d.db, query, p)
	return wrapErr(err)
}

// FindPrincipalByEmail looks a principal up case-insensitively.
func (d *DB) FindPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p models.Principal
	err := sqlx.GetContext(ctx, d.db, &p,
		`SELECT `+principalColumns+` FROM principals WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return &p, nil
}

// FindPrincipalByID looks a principal up by id.
func (d *DB) FindPrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	var p models.Principal
	err := sqlx.GetContext(ctx, d.db, &p, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &p, nil
}

// EmailExists reports whether a principal uses email.
func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE email = $1)`, strings.ToLower(strings.TrimSpace(email)))
}

// UsernameExists reports whether a principal uses username.
func (d *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE username = $1)`, username)
}

// UpdatePasswordHash replaces the stored hash for id.
func (d *DB) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return updatePasswordHash(ctx, d.db, id, hash, now)
}

// SetLocked sets the locked flag for id.
func (d *DB) SetLocked(ctx context.Context, id string, locked bool, now time.Time) error {
	return d.execOne(ctx, `UPDATE principals SET locked = $2, updated_at = $3 WHERE id = $1`, id, locked, now)
}

// SetEnabled sets the enabled flag for id.
func (d *DB) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	return d.execOne(ctx, `UPDATE principals SET enabled = $2, updated_at = $3 WHERE id = $1`, id, enabled, now)
}

// DeletePrincipal removes id. Its tokens go with it through ON DELETE CASCADE.
func (d *DB) DeletePrincipal(ctx context.Context, id string) error {
	return d.execOne(ctx, `DELETE FROM principals WHERE id = $1`, id)
}

func (d *DB) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, d.db, &exists, query, arg); err != nil {
		return false, wrapErr(err)
	}
	return exists, nil
}

func (d *DB) execOne(ctx context.Context, query string, args ...any) error {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err)
	}
	return requireOneRow(res.RowsAffected())
}

func updatePasswordHash(ctx context.Context, q sqlx.ExecerContext, id, hash string, now time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE principals SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, now)
	if err != nil {
		return wrapErr(err)
	}
	return requireOneRow(res.RowsAffected())
}

func requireOneRow(n int64, err error) error {
	if err != nil {
		return wrapErr(err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
