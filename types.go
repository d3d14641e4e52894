package taskauth

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/models"
)

// Principal is a registered account as persisted by a PrincipalStore.
type Principal = models.Principal

// AuditEvent and AuditSink expose the audit pipeline to hosts that want to
// route events somewhere other than the log.
type (
	AuditEvent = internalaudit.Event
	AuditSink  = internalaudit.Sink
)

// TokenTypeBearer is the token_type of every AuthBundle.
const TokenTypeBearer = "Bearer"

// PrincipalSummary is the public view of a principal.
type PrincipalSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthBundle is returned by Register, Login and Refresh.
type AuthBundle struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	User         PrincipalSummary `json:"user"`
	IssuedAt     time.Time        `json:"issued_at"`
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PrincipalStore persists principals. Lookups by e-mail are case-insensitive
// and missing rows are reported as models.ErrNotFound. Create reports
// duplicates as models.ErrEmailConflict or models.ErrUsernameConflict.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p *Principal) error
	FindPrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	FindPrincipalByID(ctx context.Context, id string) (*Principal, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error
	SetLocked(ctx context.Context, id string, locked bool, now time.Time) error
	SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error
	// DeletePrincipal removes id along with its refresh and reset tokens.
	DeletePrincipal(ctx context.Context, id string) error
}

// CredentialOutcome classifies a credential check.
type CredentialOutcome uint8

const (
	// CredentialsAccepted means the password matched an active principal.
	CredentialsAccepted CredentialOutcome = iota
	// CredentialsRejected covers unknown e-mails and wrong passwords.
	CredentialsRejected
	// CredentialsDisabled means the principal is disabled.
	CredentialsDisabled
	// CredentialsLocked means the principal is locked.
	CredentialsLocked
)

// CredentialResult is returned by a CredentialVerifier. Principal is set
// only for CredentialsAccepted.
type CredentialResult struct {
	Outcome   CredentialOutcome
	Principal *Principal
}

// CredentialVerifier checks an e-mail and password pair. The error return is
// reserved for infrastructure failures; a bad password is an Outcome.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (CredentialResult, error)
}

// EmailSender delivers password-reset messages.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}
