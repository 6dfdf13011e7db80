package domain

import (
	"errors"
	"strings"
	"time"
)

// Account is the owner of sessions. The auth core creates it once at registration and
// otherwise only reads it.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the account projection returned to clients. It never carries the password hash.
type Summary struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// NormalizeEmail lower-cases and trims email. Emails are stored and looked up normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// Summary returns the public projection of a.
func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Email: a.Email, Name: a.Name, CreatedAt: a.CreatedAt}
}
