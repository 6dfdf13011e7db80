package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"authcore/backend/internal/device"
	"authcore/backend/internal/server/interceptors"
	"authcore/backend/internal/session/domain"
	"authcore/backend/internal/session/service"
)

// mockSessions implements Sessions for tests.
type mockSessions struct {
	views     map[string][]domain.View
	listErr   error
	revokeErr error
	revoked   []string
}

func (m *mockSessions) ListSessions(_ context.Context, accountID string) ([]domain.View, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.views[accountID], nil
}

func (m *mockSessions) RevokeSession(_ context.Context, accountID, sessionID string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked = append(m.revoked, accountID+"/"+sessionID)
	return nil
}

func authed() context.Context {
	return interceptors.WithAccountID(context.Background(), "acct-1")
}

func views(n int) []domain.View {
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	fp, desc := device.Extract("curl/8.4.0", "127.0.0.1")
	out := make([]domain.View, n)
	for i := range out {
		out[i] = domain.View{
			ID:          fmt.Sprintf("s%03d", i),
			Fingerprint: fp,
			Descriptor:  desc,
			CreatedAt:   base.Add(-time.Duration(i) * time.Minute),
			LastUsedAt:  base,
		}
	}
	return out
}

func TestServer_NilSessions(t *testing.T) {
	srv := NewServer(nil)
	if _, err := srv.ListSessions(authed(), &structpb.Struct{}); status.Code(err) != codes.Unimplemented {
		t.Errorf("ListSessions: code = %v, want Unimplemented", status.Code(err))
	}
	if _, err := srv.RevokeSession(authed(), &structpb.Struct{}); status.Code(err) != codes.Unimplemented {
		t.Errorf("RevokeSession: code = %v, want Unimplemented", status.Code(err))
	}
	if _, err := srv.GetSession(authed(), &structpb.Struct{}); status.Code(err) != codes.Unimplemented {
		t.Errorf("GetSession: code = %v, want Unimplemented", status.Code(err))
	}
}

func TestListSessions_RequiresAccount(t *testing.T) {
	srv := NewServer(&mockSessions{})
	_, err := srv.ListSessions(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestListSessions_Pagination(t *testing.T) {
	srv := NewServer(&mockSessions{views: map[string][]domain.View{"acct-1": views(5)}})

	in, _ := structpb.NewStruct(map[string]any{"page_size": 2})
	out, err := srv.ListSessions(authed(), in)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	page := out.GetFields()["sessions"].GetListValue().GetValues()
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}
	if got := page[0].GetStructValue().GetFields()["id"].GetStringValue(); got != "s000" {
		t.Errorf("first id = %q, want s000", got)
	}
	next := out.GetFields()["next_page_token"].GetStringValue()
	if next != "2" {
		t.Fatalf("next_page_token = %q, want 2", next)
	}

	in, _ = structpb.NewStruct(map[string]any{"page_size": 10, "page_token": "4"})
	out, err = srv.ListSessions(authed(), in)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if n := len(out.GetFields()["sessions"].GetListValue().GetValues()); n != 1 {
		t.Errorf("last page length = %d, want 1", n)
	}
	if next := out.GetFields()["next_page_token"].GetStringValue(); next != "" {
		t.Errorf("next_page_token = %q, want empty", next)
	}
}

func TestListSessions_ViewFields(t *testing.T) {
	v := views(1)
	revokedAt := v[0].CreatedAt.Add(time.Hour)
	v[0].Revoked = true
	v[0].RevocationReason = domain.ReasonCap
	v[0].RevokedAt = &revokedAt
	srv := NewServer(&mockSessions{views: map[string][]domain.View{"acct-1": v}})

	out, err := srv.ListSessions(authed(), &structpb.Struct{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	f := out.GetFields()["sessions"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	if !f["revoked"].GetBoolValue() {
		t.Error("revoked = false, want true")
	}
	if f["revocation_reason"].GetStringValue() != "cap" {
		t.Errorf("revocation_reason = %v", f["revocation_reason"])
	}
	if f["revoked_at"].GetStringValue() != "2026-04-01T11:00:00Z" {
		t.Errorf("revoked_at = %v", f["revoked_at"])
	}
	if f["user_agent"].GetStringValue() != "curl/8.4.0" {
		t.Errorf("user_agent = %v", f["user_agent"])
	}
}

func TestListSessions_Error(t *testing.T) {
	srv := NewServer(&mockSessions{listErr: errors.New("db down")})
	_, err := srv.ListSessions(authed(), &structpb.Struct{})
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestRevokeSession(t *testing.T) {
	m := &mockSessions{}
	srv := NewServer(m)

	if _, err := srv.RevokeSession(authed(), &structpb.Struct{}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("missing session_id: code = %v", status.Code(err))
	}

	in, _ := structpb.NewStruct(map[string]any{"session_id": "s1"})
	if _, err := srv.RevokeSession(authed(), in); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if len(m.revoked) != 1 || m.revoked[0] != "acct-1/s1" {
		t.Errorf("revoked = %v", m.revoked)
	}

	m.revokeErr = service.ErrNotFound
	if _, err := srv.RevokeSession(authed(), in); status.Code(err) != codes.NotFound {
		t.Errorf("foreign session: code = %v, want NotFound", status.Code(err))
	}
}

func TestGetSession(t *testing.T) {
	srv := NewServer(&mockSessions{views: map[string][]domain.View{"acct-1": views(3)}})

	in, _ := structpb.NewStruct(map[string]any{"session_id": "s001"})
	out, err := srv.GetSession(authed(), in)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if id := out.GetFields()["session"].GetStructValue().GetFields()["id"].GetStringValue(); id != "s001" {
		t.Errorf("id = %q", id)
	}

	in, _ = structpb.NewStruct(map[string]any{"session_id": "missing"})
	if _, err := srv.GetSession(authed(), in); status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound", status.Code(err))
	}
}
