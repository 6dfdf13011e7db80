package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	audithandler "authcore/backend/internal/audit/handler"
	auditrepo "authcore/backend/internal/audit/repository"
	healthhandler "authcore/backend/internal/health/handler"
	identityhandler "authcore/backend/internal/identity/handler"
	"authcore/backend/internal/server/interceptors"
	sessionhandler "authcore/backend/internal/session/handler"
	"authcore/backend/internal/session/service"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Sessions backs AuthService and SessionService. If nil, their RPCs return Unimplemented
	// and every protected RPC is rejected.
	Sessions *service.Manager
	// AuditRepo backs AuditService. If nil, ListEvents returns Unimplemented.
	AuditRepo auditrepo.Repository
	// HealthPingers are checked by grpc.health.v1.Health (e.g. Postgres pool, Redis client).
	HealthPingers []healthhandler.Pinger
	// Logger receives the access log. If nil, slog.Default is used.
	Logger *slog.Logger
}

// RegisterServices registers all gRPC services with the given server and returns the
// health server so callers can reuse its readiness check.
//
// Service → handler mapping:
//   - authcore.v1.AuthService    → internal/identity/handler
//   - authcore.v1.SessionService → internal/session/handler
//   - authcore.v1.AuditService   → internal/audit/handler
//   - grpc.health.v1.Health      → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) *healthhandler.Server {
	var (
		auth     identityhandler.AuthService
		sessions sessionhandler.Sessions
	)
	if deps.Sessions != nil {
		auth, sessions = deps.Sessions, deps.Sessions
	}
	s.RegisterService(&identityhandler.AuthServiceDesc, identityhandler.NewAuthServer(auth))
	s.RegisterService(&sessionhandler.SessionServiceDesc, sessionhandler.NewServer(sessions))
	s.RegisterService(&audithandler.AuditServiceDesc, audithandler.NewServer(deps.AuditRepo))
	health := healthhandler.NewServer(deps.HealthPingers...)
	healthpb.RegisterHealthServer(s, health)
	return health
}

// PublicMethods returns the full method names that do not require a Bearer token.
func PublicMethods() map[string]bool {
	m := map[string]bool{
		healthCheckMethod: true,
		healthWatchMethod: true,
	}
	for _, name := range identityhandler.PublicMethods() {
		m[name] = true
	}
	return m
}

// NewServer returns a gRPC server with the interceptor chain and OpenTelemetry stats
// handler installed and every service registered, plus the health server backing
// grpc.health.v1.Health. Interceptors run in order: request metadata, access log, then
// authentication.
func NewServer(deps Deps, opts ...grpc.ServerOption) (*grpc.Server, *healthhandler.Server) {
	chain := []grpc.UnaryServerInterceptor{
		interceptors.MetadataUnary(),
		interceptors.LoggingUnary(deps.Logger, map[string]bool{healthCheckMethod: true}),
	}
	if deps.Sessions != nil {
		chain = append(chain, interceptors.AuthUnary(deps.Sessions, PublicMethods()))
	} else {
		chain = append(chain, interceptors.AuthUnary(rejectAll{}, PublicMethods()))
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	}, opts...)
	s := grpc.NewServer(opts...)
	return s, RegisterServices(s, deps)
}
