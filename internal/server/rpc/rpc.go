// Package rpc holds the plumbing shared by the gRPC handlers: hand-written method
// descriptors over structpb.Struct messages, field accessors, and error mapping.
package rpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"authcore/backend/internal/session/service"
)

// Handler serves one unary method. srv is the value registered with the ServiceDesc.
type Handler func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// Method returns the descriptor for method name of service, decoding requests as structpb.Struct.
func Method(service, name string, h Handler) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return h(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h(srv, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// String returns the string field key of in, or "" when absent or not a string.
func String(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// Time formats t as RFC 3339 with nanoseconds in UTC, or "" for the zero time.
func Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Struct builds a response message from m. Values must be structpb-compatible.
func Struct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}

// Error maps session manager errors to gRPC status errors. Unknown errors become Internal
// without leaking their text.
func Error(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrAccountExists):
		return status.Error(codes.AlreadyExists, "account already exists")
	case errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, service.ErrSessionNotFoundOrRevoked):
		return status.Error(codes.Unauthenticated, "session not found or revoked")
	case errors.Is(err, service.ErrAccountNotFound):
		return status.Error(codes.Unauthenticated, "account not found")
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "session not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
