package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrUnknownHashFormat is returned for stored hashes that are neither
	// Argon2id PHC strings nor bcrypt hashes.
	ErrUnknownHashFormat = errors.New("unknown password hash format")
)

// Hasher hashes new passwords with Argon2id and still verifies bcrypt hashes
// written by earlier deployments. Verified bcrypt hashes always report that
// they need an upgrade.
type Hasher struct {
	argon *Argon2
}

// NewHasher builds a Hasher over the given Argon2id parameters.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a}, nil
}

// Hash returns an Argon2id PHC hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify checks password against encodedHash in whichever format it was stored.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isArgon2(encodedHash):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful login.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	switch {
	case isArgon2(encodedHash):
		return h.argon.NeedsUpgrade(encodedHash)
	case isBcrypt(encodedHash):
		return true, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

func isArgon2(encoded string) bool {
	return strings.HasPrefix(encoded, "$"+algorithmID+"$")
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
