package repository

import (
	"context"
	"errors"

	"authcore/backend/internal/account/domain"
)

// ErrEmailTaken is returned by Create when another account already uses the email.
var ErrEmailTaken = errors.New("email already registered")

// Repository defines persistence for accounts.
type Repository interface {
	// GetByID returns the account, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByEmail returns the account for a normalized email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
}
