package handler

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"authcore/backend/internal/audit/domain"
	auditrepo "authcore/backend/internal/audit/repository"
	"authcore/backend/internal/platform/rbac"
	"authcore/backend/internal/server/rpc"
)

// ServiceName is the fully qualified gRPC service name of AuditService.
const ServiceName = "authcore.v1.AuditService"

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Server implements AuditService: the caller's own session event trail.
type Server struct {
	repo auditrepo.Repository
}

// NewServer returns a new Audit gRPC server. If repo is nil, ListEvents returns Unimplemented.
func NewServer(repo auditrepo.Repository) *Server {
	return &Server{repo: repo}
}

// AuditServiceDesc describes AuditService for grpc.ServiceRegistrar.RegisterService.
var AuditServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "ListEvents", func(srv any, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(*Server).ListEvents(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authcore/v1/audit",
}

// ListEvents returns a page of the caller's session events, newest first.
func (s *Server) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method ListEvents not implemented")
	}
	accountID, err := rbac.RequireAccount(ctx)
	if err != nil {
		return nil, err
	}
	pageSize := int32(defaultPageSize)
	if ps := int32(in.GetFields()["page_size"].GetNumberValue()); ps > 0 {
		pageSize = ps
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := int32(0)
	if tok := rpc.String(in, "page_token"); tok != "" {
		if n, err := strconv.ParseInt(tok, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	list, err := s.repo.ListByAccount(ctx, accountID, pageSize, offset)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to list events")
	}
	events := make([]any, 0, len(list))
	for _, e := range list {
		events = append(events, entryFields(e))
	}
	nextToken := ""
	if len(list) == int(pageSize) {
		nextToken = strconv.Itoa(int(offset + pageSize))
	}
	return rpc.Struct(map[string]any{
		"events":          events,
		"next_page_token": nextToken,
	})
}

func entryFields(e *domain.Entry) map[string]any {
	return map[string]any{
		"id":             e.ID,
		"type":           e.EventType,
		"session_id":     e.SessionID,
		"reason":         e.Reason,
		"user_agent":     e.UserAgent,
		"network_origin": e.NetworkOrigin,
		"created_at":     rpc.Time(e.CreatedAt),
	}
}
