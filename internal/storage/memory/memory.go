// Package memory is an in-process storage backend for principals, refresh
// tokens and reset tokens. It serves development servers and tests.
//
// All state sits behind one mutex. Transactions hold that mutex for their
// whole callback and roll back their writes when the callback fails.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
)

// DB holds principals directly. Token repositories are exposed as views
// through RefreshTokens and ResetTokens.
type DB struct {
	mu sync.Mutex

	principals map[string]*models.Principal
	byEmail    map[string]string
	byUsername map[string]string

	refresh            map[string]*models.RefreshToken
	refreshByPrincipal map[string]string

	resets map[string]*models.PasswordResetToken
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		principals:         make(map[string]*models.Principal),
		byEmail:            make(map[string]string),
		byUsername:         make(map[string]string),
		refresh:            make(map[string]*models.RefreshToken),
		refreshByPrincipal: make(map[string]string),
		resets:             make(map[string]*models.PasswordResetToken),
	}
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

// tx applies writes directly and keeps an undo log.
type tx struct {
	db   *DB
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (db *DB) run(ctx context.Context, fn func(t *tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	t := &tx{db: db}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clonePrincipal(p *models.Principal) *models.Principal {
	c := *p
	return &c
}

// CreatePrincipal inserts p, enforcing unique e-mail and username.
func (db *DB) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	return db.run(ctx, func(t *tx) error {
		email := normalizeEmail(p.Email)
		if _, ok := db.byEmail[email]; ok {
			return models.ErrEmailConflict
		}
		if _, ok := db.byUsername[p.Username]; ok {
			return models.ErrUsernameConflict
		}
		stored := clonePrincipal(p)
		stored.Email = email
		db.principals[stored.ID] = stored
		db.byEmail[email] = stored.ID
		db.byUsername[stored.Username] = stored.ID
		return nil
	})
}

// FindPrincipalByEmail looks a principal up case-insensitively.
func (db *DB) FindPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var out *models.Principal
	err := db.run(ctx, func(*tx) error {
		id, ok := db.byEmail[normalizeEmail(email)]
		if !ok {
			return models.ErrNotFound
		}
		out = clonePrincipal(db.principals[id])
		return nil
	})
	return out, err
}

// FindPrincipalByID looks a principal up by id.
func (db *DB) FindPrincipalByID(ctx context.Context, id string) (*models.Principal, error) {
	var out *models.Principal
	err := db.run(ctx, func(*tx) error {
		p, ok := db.principals[id]
		if !ok {
			return models.ErrNotFound
		}
		out = clonePrincipal(p)
		return nil
	})
	return out, err
}

// EmailExists reports whether a principal uses email.
func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := db.run(ctx, func(*tx) error {
		_, exists = db.byEmail[normalizeEmail(email)]
		return nil
	})
	return exists, err
}

// UsernameExists reports whether a principal uses username.
func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := db.run(ctx, func(*tx) error {
		_, exists = db.byUsername[username]
		return nil
	})
	return exists, err
}

// UpdatePasswordHash replaces the stored hash for id.
func (db *DB) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	return db.run(ctx, func(t *tx) error {
		return t.updatePasswordHash(id, hash, now)
	})
}

// SetLocked sets the locked flag for id.
func (db *DB) SetLocked(ctx context.Context, id string, locked bool, now time.Time) error {
	return db.run(ctx, func(t *tx) error {
		return t.updatePrincipal(id, now, func(p *models.Principal) { p.Locked = locked })
	})
}

// SetEnabled sets the enabled flag for id.
func (db *DB) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	return db.run(ctx, func(t *tx) error {
		return t.updatePrincipal(id, now, func(p *models.Principal) { p.Enabled = enabled })
	})
}

// DeletePrincipal removes id and every token it owns.
func (db *DB) DeletePrincipal(ctx context.Context, id string) error {
	return db.run(ctx, func(t *tx) error {
		p, ok := db.principals[id]
		if !ok {
			return models.ErrNotFound
		}
		delete(db.principals, id)
		delete(db.byEmail, p.Email)
		delete(db.byUsername, p.Username)
		if token, ok := db.refreshByPrincipal[id]; ok {
			t.deleteRefresh(token)
		}
		for hash, rt := range db.resets {
			if rt.PrincipalID == id {
				delete(db.resets, hash)
			}
		}
		return nil
	})
}

func (t *tx) updatePrincipal(id string, now time.Time, mutate func(p *models.Principal)) error {
	p, ok := t.db.principals[id]
	if !ok {
		return models.ErrNotFound
	}
	prev := *p
	t.undo = append(t.undo, func() { *p = prev })
	mutate(p)
	p.UpdatedAt = now
	return nil
}

func (t *tx) updatePasswordHash(id, hash string, now time.Time) error {
	return t.updatePrincipal(id, now, func(p *models.Principal) { p.PasswordHash = hash })
}
