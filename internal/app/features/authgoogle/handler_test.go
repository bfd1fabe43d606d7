package authgoogle

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/uncip/guardhub/internal/app/store/oauthstate"
	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "guardhub_session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return NewHandler(
		userstore.New(db), sm, oauthstate.New(db),
		"client-id", "client-secret",
		"https://api.example.com", "https://app.example.com",
		zap.NewNop(),
	)
}

func TestServeLoginRedirectsToGoogle(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("GET", "/auth/google", nil)
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, req)

	if rec.Code != 307 {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "accounts.google.com") {
		t.Errorf("redirect location = %q", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Errorf("no state parameter in %q", loc)
	}
}

func TestServeLoginNotConfigured(t *testing.T) {
	h := newTestHandler(t)
	h.ClientID = ""
	h.ClientSecret = ""

	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest("GET", "/auth/google", nil))

	if rec.Code != 303 {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error=google_not_configured") {
		t.Errorf("location = %q", loc)
	}
}

func TestServeCallbackRejectsBadState(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name    string
		target  string
		wantErr string
	}{
		{"missing state", "/auth/google/callback?code=abc", "invalid_state"},
		{"unknown state", "/auth/google/callback?code=abc&state=bogus", "invalid_state"},
		{"provider error", "/auth/google/callback?error=access_denied", "google_denied"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeCallback(rec, httptest.NewRequest("GET", tc.target, nil))
			if rec.Code != 303 {
				t.Fatalf("status = %d, want 303", rec.Code)
			}
			if loc := rec.Header().Get("Location"); !strings.Contains(loc, "error="+tc.wantErr) {
				t.Errorf("location = %q, want error=%s", loc, tc.wantErr)
			}
		})
	}
}

func TestSafeReturn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/children", "/children"},
		{"https://evil.example.com", "/"},
		{"//evil.example.com", "/"},
	}
	for _, tc := range tests {
		if got := safeReturn(tc.in); got != tc.want {
			t.Errorf("safeReturn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
