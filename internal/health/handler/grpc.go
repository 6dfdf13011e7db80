package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const pingTimeout = 2 * time.Second

// Pinger checks a backing store (e.g. *pgxpool.Pool, redis client adapter).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness probes. It reports NOT_SERVING
// when any pinger fails. Watch is left unimplemented.
type Server struct {
	healthpb.UnimplementedHealthServer
	pingers []Pinger
}

// NewServer returns a new Health gRPC server. Nil pingers are skipped.
func NewServer(pingers ...Pinger) *Server {
	s := &Server{}
	for _, p := range pingers {
		if p != nil {
			s.pingers = append(s.pingers, p)
		}
	}
	return s
}

// Check returns SERVING when every backing store answers a ping. Only the overall
// service ("") is known; other names return NotFound.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}
	if err := s.Ready(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Ready pings every backing store and returns the first failure.
func (s *Server) Ready(ctx context.Context) error {
	for _, p := range s.pingers {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pingCtx)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}
