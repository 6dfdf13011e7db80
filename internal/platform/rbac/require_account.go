// Package rbac holds caller checks shared by protected gRPC handlers.
package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authcore/backend/internal/server/interceptors"
)

// RequireAccount ensures the caller is authenticated and returns the account id set by
// the auth interceptor. Returns Unauthenticated when no account is in context.
func RequireAccount(ctx context.Context) (string, error) {
	accountID, ok := interceptors.GetAccountID(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "account context required")
	}
	return accountID, nil
}
