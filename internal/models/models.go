// Package models defines the persistence records shared by the token stores
// and the storage backends.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrEmailConflict is returned when a principal with the same e-mail exists.
	ErrEmailConflict = errors.New("email already exists")
	// ErrDuplicate is returned when a unique token constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrUsernameConflict is returned when a principal with the same username exists.
	ErrUsernameConflict = errors.New("username already exists")
)

// Principal is a registered account. Email is stored lower-cased and trimmed.
type Principal struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Enabled      bool      `db:"enabled"`
	Locked       bool      `db:"locked"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// RefreshToken is the single long-lived credential a principal may hold.
type RefreshToken struct {
	Token       string    `db:"token"`
	PrincipalID string    `db:"principal_id"`
	ExpiryDate  time.Time `db:"expiry_date"`
}

// Expired reports whether the token is past its expiry at now.
func (r *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(r.ExpiryDate)
}

// PasswordResetToken is a one-time credential. Only the SHA-256 digest of
// the token value is persisted.
type PasswordResetToken struct {
	TokenHash   string    `db:"token_hash"`
	PrincipalID string    `db:"principal_id"`
	ExpiryDate  time.Time `db:"expiry_date"`
	Used        bool      `db:"used"`
}

// Valid reports whether the token is unused and unexpired at now.
func (p *PasswordResetToken) Valid(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiryDate)
}
