package logout

import (
	"net/http/httptest"
	"testing"

	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/testutil"
	"go.uber.org/zap"
)

func TestLogout(t *testing.T) {
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "guardhub_session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := NewHandler(sm, zap.NewNop())

	req := testutil.WithUser(httptest.NewRequest("POST", "/auth/logout", nil), testutil.ParentUser())
	rec := httptest.NewRecorder()
	h.HandleLogout(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookie written")
	}
	if cookies[0].MaxAge != -1 {
		t.Errorf("cookie MaxAge = %d, want -1", cookies[0].MaxAge)
	}
}

func TestLogoutAnonymous(t *testing.T) {
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "guardhub_session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := NewHandler(sm, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleLogout(rec, httptest.NewRequest("POST", "/auth/logout", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
