package taskauth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxEmailLength = 254

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) validateRegister(req RegisterRequest) error {
	verr := &ValidationError{}

	username := strings.TrimSpace(req.Username)
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		verr.add("username", "Username is required")
	case n < e.config.Validation.UsernameMinLength || n > e.config.Validation.UsernameMaxLength:
		verr.add("username", fmt.Sprintf("Username must be between %d and %d characters",
			e.config.Validation.UsernameMinLength, e.config.Validation.UsernameMaxLength))
	}

	validateEmail(verr, req.Email)
	e.validatePassword(verr, "password", req.Password)

	return verr.errOrNil()
}

func validateEmail(verr *ValidationError, raw string) {
	email := strings.TrimSpace(raw)
	if email == "" {
		verr.add("email", "Email is required")
		return
	}
	if len(email) > maxEmailLength {
		verr.add("email", "Email is too long")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		verr.add("email", "Email should be valid")
	}
}

func (e *Engine) validatePassword(verr *ValidationError, field, password string) {
	if password == "" {
		verr.add(field, "Password is required")
		return
	}
	n := utf8.RuneCountInString(password)
	if n < e.config.Password.MinLength || n > e.config.Password.MaxLength {
		verr.add(field, fmt.Sprintf("Password must be between %d and %d characters",
			e.config.Password.MinLength, e.config.Password.MaxLength))
	}
}
