package repository

import (
	"context"

	"authcore/backend/internal/audit/domain"
)

// Repository defines persistence for the session audit trail.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
	// ListByAccount returns the account's entries newest first, paginated by limit and offset.
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Entry, error)
}
