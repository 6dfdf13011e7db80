package interceptors

import (
	"context"

	"authcore/backend/internal/device"
)

type contextKey struct{ name string }

var (
	accountIDKey = contextKey{"account_id"}
	metadataKey  = contextKey{"request_metadata"}
)

// WithAccountID returns a context carrying the authenticated account id.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// GetAccountID returns the account_id from context and true if set; otherwise "", false.
func GetAccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(accountIDKey).(string)
	return v, ok && v != ""
}

// WithRequestMetadata returns a context carrying the caller's device metadata.
func WithRequestMetadata(ctx context.Context, md device.RequestMetadata) context.Context {
	return context.WithValue(ctx, metadataKey, md)
}

// GetRequestMetadata returns the device metadata stored by MetadataUnary, or the zero value.
func GetRequestMetadata(ctx context.Context) device.RequestMetadata {
	md, _ := ctx.Value(metadataKey).(device.RequestMetadata)
	return md
}
