package handler

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"authcore/backend/internal/platform/rbac"
	"authcore/backend/internal/server/rpc"
	"authcore/backend/internal/session/domain"
)

// ServiceName is the fully qualified gRPC service name of SessionService.
const ServiceName = "authcore.v1.SessionService"

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Sessions is the subset of the session manager used by Server.
type Sessions interface {
	ListSessions(ctx context.Context, accountID string) ([]domain.View, error)
	RevokeSession(ctx context.Context, accountID, sessionID string) error
}

// Server implements SessionService: the caller's own session listing and revocation.
type Server struct {
	sessions Sessions
}

// NewServer returns a new Session gRPC server. If sessions is nil, all RPCs return Unimplemented.
func NewServer(sessions Sessions) *Server {
	return &Server{sessions: sessions}
}

// SessionServiceDesc describes SessionService for grpc.ServiceRegistrar.RegisterService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "ListSessions", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*Server).ListSessions(ctx, in)
		}),
		rpc.Method(ServiceName, "GetSession", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*Server).GetSession(ctx, in)
		}),
		rpc.Method(ServiceName, "RevokeSession", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*Server).RevokeSession(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authcore/v1/session",
}

// RevokeSession revokes one of the caller's sessions. Expects session_id.
func (s *Server) RevokeSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeSession not implemented")
	}
	accountID, err := rbac.RequireAccount(ctx)
	if err != nil {
		return nil, err
	}
	sessionID := rpc.String(in, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	if err := s.sessions.RevokeSession(ctx, accountID, sessionID); err != nil {
		return nil, rpc.Error(err)
	}
	return &structpb.Struct{}, nil
}

// ListSessions returns a page of the caller's sessions, active and revoked, newest first.
// page_size defaults to 50 and is capped at 100; page_token is the offset returned as
// next_page_token by the previous page.
func (s *Server) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
	}
	accountID, err := rbac.RequireAccount(ctx)
	if err != nil {
		return nil, err
	}
	pageSize := defaultPageSize
	if ps := int(in.GetFields()["page_size"].GetNumberValue()); ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := 0
	if tok := rpc.String(in, "page_token"); tok != "" {
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := s.sessions.ListSessions(ctx, accountID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	start := min(offset, len(list))
	end := min(start+pageSize, len(list))
	page := make([]any, 0, end-start)
	for _, v := range list[start:end] {
		page = append(page, viewFields(v))
	}
	nextToken := ""
	if end < len(list) {
		nextToken = strconv.Itoa(end)
	}
	return rpc.Struct(map[string]any{
		"sessions":        page,
		"next_page_token": nextToken,
	})
}

// GetSession returns one of the caller's sessions by session_id.
func (s *Server) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method GetSession not implemented")
	}
	accountID, err := rbac.RequireAccount(ctx)
	if err != nil {
		return nil, err
	}
	sessionID := rpc.String(in, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	list, err := s.sessions.ListSessions(ctx, accountID)
	if err != nil {
		return nil, rpc.Error(err)
	}
	for _, v := range list {
		if v.ID == sessionID {
			return rpc.Struct(map[string]any{"session": viewFields(v)})
		}
	}
	return nil, status.Error(codes.NotFound, "session not found")
}

func viewFields(v domain.View) map[string]any {
	revokedAt := ""
	if v.RevokedAt != nil {
		revokedAt = rpc.Time(*v.RevokedAt)
	}
	return map[string]any{
		"id":                v.ID,
		"user_agent":        v.Fingerprint.UserAgentRaw,
		"network_origin":    v.Fingerprint.NetworkOrigin,
		"browser":           v.Descriptor.Browser,
		"os":                v.Descriptor.OS,
		"platform":          v.Descriptor.Platform,
		"device_label":      v.Descriptor.DeviceLabel,
		"revoked":           v.Revoked,
		"revocation_reason": string(v.RevocationReason),
		"created_at":        rpc.Time(v.CreatedAt),
		"last_used_at":      rpc.Time(v.LastUsedAt),
		"revoked_at":        revokedAt,
	}
}
