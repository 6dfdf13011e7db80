package interceptors

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoggingUnary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	interceptor := LoggingUnary(logger, map[string]bool{"/grpc.health.v1.Health/Check": true})

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/authcore.v1.AuthService/Login"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unauthenticated, "nope")
		})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("error should pass through, got %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", line["level"])
	}
	if line["method"] != "/authcore.v1.AuthService/Login" {
		t.Errorf("method = %v", line["method"])
	}
	if line["code"] != "Unauthenticated" {
		t.Errorf("code = %v", line["code"])
	}
	if line["client_ip"] != "unknown" {
		t.Errorf("client_ip = %v", line["client_ip"])
	}

	buf.Reset()
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })
	if buf.Len() != 0 {
		t.Errorf("skipped method was logged: %s", buf.String())
	}
}
