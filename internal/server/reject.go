package server

import (
	"context"

	"authcore/backend/internal/session/service"
)

// rejectAll is the access validator used when no session manager is configured.
type rejectAll struct{}

func (rejectAll) ValidateAccessCredential(context.Context, string) (string, error) {
	return "", service.ErrInvalidToken
}
