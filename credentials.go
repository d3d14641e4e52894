package taskauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/taskauth/internal/models"
	"github.com/MrEthical07/taskauth/password"
	"go.uber.org/zap"
)

// PasswordVerifier is the default CredentialVerifier. It checks the stored
// hash and, when upgrade is enabled, rewrites legacy or under-cost hashes
// after a successful match.
type PasswordVerifier struct {
	store   PrincipalStore
	hasher  *password.Hasher
	upgrade bool
	logger  *zap.Logger
	now     func() time.Time
	// dummyHash is compared for unknown e-mails so the response time does
	// not reveal whether an account exists.
	dummyHash string
	onUpgrade func()
}

// NewPasswordVerifier returns a verifier over store and hasher.
func NewPasswordVerifier(store PrincipalStore, hasher *password.Hasher, upgradeOnLogin bool, logger *zap.Logger) (*PasswordVerifier, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("password verifier requires a principal store and hasher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := hasher.Hash("timing-equalizer")
	if err != nil {
		return nil, err
	}
	return &PasswordVerifier{
		store:     store,
		hasher:    hasher,
		upgrade:   upgradeOnLogin,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// VerifyCredentials implements CredentialVerifier. Locked is reported before
// disabled, and both before the password is checked.
func (v *PasswordVerifier) VerifyCredentials(ctx context.Context, email, pass string) (CredentialResult, error) {
	p, err := v.store.FindPrincipalByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		_, _ = v.hasher.Verify(pass, v.dummyHash)
		return CredentialResult{Outcome: CredentialsRejected}, nil
	}
	if err != nil {
		return CredentialResult{}, err
	}

	if p.Locked {
		return CredentialResult{Outcome: CredentialsLocked}, nil
	}
	if !p.Enabled {
		return CredentialResult{Outcome: CredentialsDisabled}, nil
	}

	ok, err := v.hasher.Verify(pass, p.PasswordHash)
	if err != nil {
		v.logger.Warn("stored password hash could not be verified",
			zap.String("principal_id", p.ID), zap.Error(err))
	}
	if !ok {
		return CredentialResult{Outcome: CredentialsRejected}, nil
	}

	if v.upgrade {
		v.upgradeHash(ctx, p, pass)
	}

	return CredentialResult{Outcome: CredentialsAccepted, Principal: p}, nil
}

// upgradeHash is best effort: a failure is logged and the login proceeds.
func (v *PasswordVerifier) upgradeHash(ctx context.Context, p *Principal, pass string) {
	needs, err := v.hasher.NeedsRehash(p.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := v.hasher.Hash(pass)
	if err != nil {
		v.logger.Warn("password rehash failed", zap.String("principal_id", p.ID), zap.Error(err))
		return
	}
	if err := v.store.UpdatePasswordHash(ctx, p.ID, hash, v.now()); err != nil {
		v.logger.Warn("password hash upgrade not persisted", zap.String("principal_id", p.ID), zap.Error(err))
		return
	}
	p.PasswordHash = hash
	if v.onUpgrade != nil {
		v.onUpgrade()
	}
}
