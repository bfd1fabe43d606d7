package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/uncip/guardhub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		false,
		logger,
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "s", "", false, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/children", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unauthenticated") {
		t.Errorf("expected unauthenticated error body, got %q", rec.Body.String())
	}
}

func TestRequireSignedIn_WithUser_PassesThrough(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/children", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Role: "parent"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRequireRole_WrongRole_Returns403(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/users", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Role: "parent"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestRequireRole_CaseInsensitive(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/users", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Role: "Admin"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("role check should be case-insensitive: got %d", rec.Code)
	}
}

func TestRequireRole_SecondaryRoleSuffices(t *testing.T) {
	sm := newTestSessionManager(t)

	handler := sm.RequireRole("authority")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/alerts", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Role: "parent", Roles: []string{"parent", "Authority"}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("secondary role should satisfy RequireRole: got %d", rec.Code)
	}
}

func TestSignIn_RoundTripsThroughCookie(t *testing.T) {
	sm := newTestSessionManager(t)

	// Sign in and capture the cookie.
	signReq := httptest.NewRequest("POST", "/auth/login", nil)
	signRec := httptest.NewRecorder()
	err := sm.SignIn(signRec, signReq, &auth.SessionUser{
		ID:    "u1",
		Name:  "Pat",
		Email: "pat@example.com",
		Role:  "parent",
		Roles: []string{"parent"},
	})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	cookies := signRec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set")
	}

	// Replay the cookie through LoadSessionUser.
	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/children", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected a user in context after cookie round trip")
	}
	if got.ID != "u1" || got.Role != "parent" || got.Email != "pat@example.com" {
		t.Errorf("unexpected session user: %+v", got)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "parent" {
		t.Errorf("roles did not survive round trip: %v", got.Roles)
	}
}

func TestLoadSessionUser_BearerToken(t *testing.T) {
	sm := newTestSessionManager(t)
	ti, err := auth.NewTokenIssuer("test-token-secret-must-be-32-chars!!", 3600e9)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	sm.SetTokenIssuer(ti)

	tok, err := ti.Issue(&auth.SessionUser{ID: "u2", Role: "authority"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	var got *auth.SessionUser
	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	}))

	req := httptest.NewRequest("GET", "/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected a user resolved from bearer token")
	}
	if got.ID != "u2" || got.Role != "authority" {
		t.Errorf("unexpected user from token: %+v", got)
	}
}

func TestLoadSessionUser_GarbageBearerIgnored(t *testing.T) {
	sm := newTestSessionManager(t)
	ti, _ := auth.NewTokenIssuer("test-token-secret-must-be-32-chars!!", 3600e9)
	sm.SetTokenIssuer(ti)

	handler := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.CurrentUser(r); ok {
			t.Error("garbage token must not authenticate")
		}
	}))

	req := httptest.NewRequest("GET", "/alerts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}
