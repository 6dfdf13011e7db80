package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	accountdomain "authcore/backend/internal/account/domain"
	"authcore/backend/internal/device"
	"authcore/backend/internal/platform/rbac"
	"authcore/backend/internal/server/interceptors"
	"authcore/backend/internal/server/rpc"
	"authcore/backend/internal/session/service"
)

// ServiceName is the fully qualified gRPC service name of AuthService.
const ServiceName = "authcore.v1.AuthService"

// AuthService is the subset of the session manager used by AuthServer.
type AuthService interface {
	Register(ctx context.Context, email, password, name string, md device.RequestMetadata) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string, md device.RequestMetadata) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, md device.RequestMetadata) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, md device.RequestMetadata) error
	Profile(ctx context.Context, accountID string) (*accountdomain.Summary, error)
}

// AuthServer implements AuthService for register, login, refresh, logout, and profile.
// When no service is configured every method returns Unimplemented.
type AuthServer struct {
	auth AuthService
}

// NewAuthServer returns a new Auth gRPC server. auth may be nil.
func NewAuthServer(auth AuthService) *AuthServer {
	return &AuthServer{auth: auth}
}

// AuthServiceDesc describes AuthService for grpc.ServiceRegistrar.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "Register", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*AuthServer).Register(ctx, in)
		}),
		rpc.Method(ServiceName, "Login", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*AuthServer).Login(ctx, in)
		}),
		rpc.Method(ServiceName, "Refresh", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*AuthServer).Refresh(ctx, in)
		}),
		rpc.Method(ServiceName, "Logout", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*AuthServer).Logout(ctx, in)
		}),
		rpc.Method(ServiceName, "Profile", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*AuthServer).Profile(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authcore/v1/auth",
}

// PublicMethods lists the AuthService methods callable without a Bearer token.
func PublicMethods() []string {
	return []string{
		"/" + ServiceName + "/Register",
		"/" + ServiceName + "/Login",
		"/" + ServiceName + "/Refresh",
		"/" + ServiceName + "/Logout",
	}
}

// Register creates an account and its first session. Expects email, password, and name.
func (s *AuthServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Register not implemented")
	}
	email, password := rpc.String(in, "email"), rpc.String(in, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	res, err := s.auth.Register(ctx, email, password, rpc.String(in, "name"), interceptors.GetRequestMetadata(ctx))
	if err != nil {
		return nil, rpc.Error(err)
	}
	return authResponse(res)
}

// Login authenticates email and password and opens a session for the calling device.
func (s *AuthServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	email, password := rpc.String(in, "email"), rpc.String(in, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	res, err := s.auth.Login(ctx, email, password, interceptors.GetRequestMetadata(ctx))
	if err != nil {
		return nil, rpc.Error(err)
	}
	return authResponse(res)
}

// Refresh rotates refresh_token into a new credential pair.
func (s *AuthServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	token := rpc.String(in, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}
	res, err := s.auth.Refresh(ctx, token, interceptors.GetRequestMetadata(ctx))
	if err != nil {
		return nil, rpc.Error(err)
	}
	return authResponse(res)
}

// Logout revokes the session behind refresh_token.
func (s *AuthServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	token := rpc.String(in, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}
	if err := s.auth.Logout(ctx, token, interceptors.GetRequestMetadata(ctx)); err != nil {
		return nil, rpc.Error(err)
	}
	return &structpb.Struct{}, nil
}

// Profile returns the caller's account summary.
func (s *AuthServer) Profile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Profile not implemented")
	}
	accountID, err := rbac.RequireAccount(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := s.auth.Profile(ctx, accountID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	return rpc.Struct(map[string]any{"account": accountFields(*summary)})
}

func authResponse(res *service.AuthResult) (*structpb.Struct, error) {
	return rpc.Struct(map[string]any{
		"access_token":       res.AccessToken,
		"refresh_token":      res.RefreshToken,
		"access_expires_at":  rpc.Time(res.AccessExpiresAt),
		"refresh_expires_at": rpc.Time(res.RefreshExpiresAt),
		"session_id":         res.SessionID,
		"account":            accountFields(res.Account),
	})
}

func accountFields(a accountdomain.Summary) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"email":      a.Email,
		"name":       a.Name,
		"created_at": rpc.Time(a.CreatedAt),
	}
}
