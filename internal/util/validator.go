package util

import (
	"net/mail"
	"strings"

	"github.com/bidhub/procurement/internal/apperr"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength bounds the input handed to argon2id.
	MaxPasswordLength = 256
)

// ValidateEmail rejects empty and malformed addresses.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email", "email is invalid")
	}
	return nil
}

// ValidatePassword applies the rules for a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password", "password must be at least 8 characters")
	}
	return LoginPassword(password)
}

// LoginPassword checks a submitted password without the minimum length, so
// accounts seeded under older rules can still sign in.
func LoginPassword(password string) error {
	if err := RequireString(password, "password"); err != nil {
		return err
	}
	if len(password) > MaxPasswordLength {
		return apperr.Validation("password", "password must be at most 256 characters")
	}
	return nil
}

// RequireString rejects blank values.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(field, field+" is required")
	}
	return nil
}
