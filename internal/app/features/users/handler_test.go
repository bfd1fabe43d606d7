package users

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/domain/models"
	"github.com/uncip/guardhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewHandler(userstore.New(db), nil, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestListScopedByRole(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := f.CreateAdmin(ctx, "Admin", "admin@example.com")
	parent := f.CreateParent(ctx, "Parent", "parent@example.com")
	f.CreateParent(ctx, "Other", "other@example.com")

	t.Run("admin sees everyone", func(t *testing.T) {
		req := testutil.WithUser(httptest.NewRequest("GET", "/users", nil),
			testutil.TestUser{ID: admin.ID.Hex(), Role: "admin"})
		rec := httptest.NewRecorder()
		h.HandleList(rec, req)

		if rec.Code != 200 {
			t.Fatalf("status = %d", rec.Code)
		}
		var list []json.RawMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(list) != 3 {
			t.Errorf("listed %d users, want 3", len(list))
		}
	})

	t.Run("parent sees only self", func(t *testing.T) {
		req := testutil.WithUser(httptest.NewRequest("GET", "/users", nil),
			testutil.TestUser{ID: parent.ID.Hex(), Role: "parent"})
		rec := httptest.NewRecorder()
		h.HandleList(rec, req)

		if rec.Code != 200 {
			t.Fatalf("status = %d", rec.Code)
		}
		var list []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(list) != 1 || list[0].ID != parent.ID.Hex() {
			t.Errorf("list = %+v, want only self", list)
		}
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HandleList(rec, httptest.NewRequest("GET", "/users", nil))
		if rec.Code != 401 {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestListEmptyIsJSONArray(t *testing.T) {
	h, _ := newTestHandler(t)

	// A parent whose account is not in the store scopes to an empty set.
	req := testutil.WithUser(httptest.NewRequest("GET", "/users", nil), testutil.ParentUser())
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty list body = %q, want []", got)
	}
}

func TestCreateAdminOnly(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"email":"staff@example.com","password":"hunter2hunter2","display_name":"Staff","role":"authority"}`

	t.Run("admin may create with role", func(t *testing.T) {
		req := testutil.WithUser(
			httptest.NewRequest("POST", "/users", strings.NewReader(body)), testutil.AdminUser())
		rec := httptest.NewRecorder()
		h.HandleCreate(rec, req)

		if rec.Code != 201 {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var created struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if created.Role != "authority" {
			t.Errorf("role = %q, want authority", created.Role)
		}
	})

	t.Run("parent denied", func(t *testing.T) {
		req := testutil.WithUser(
			httptest.NewRequest("POST", "/users", strings.NewReader(body)), testutil.ParentUser())
		rec := httptest.NewRecorder()
		h.HandleCreate(rec, req)
		if rec.Code != 403 {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestGetHidesOtherAccounts(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	target := f.CreateParent(ctx, "Target", "target@example.com")
	stranger := f.CreateParent(ctx, "Stranger", "stranger@example.com")

	get := func(asID string) *httptest.ResponseRecorder {
		req := testutil.WithUser(
			testutil.WithChiURLParam(httptest.NewRequest("GET", "/users/"+target.ID.Hex(), nil),
				"id", target.ID.Hex()),
			testutil.TestUser{ID: asID, Role: "parent"})
		rec := httptest.NewRecorder()
		h.HandleGet(rec, req)
		return rec
	}

	if rec := get(target.ID.Hex()); rec.Code != 200 {
		t.Errorf("self view status = %d, want 200", rec.Code)
	}
	// Another parent gets 404, not 403: the response must not confirm the
	// account exists.
	if rec := get(stranger.ID.Hex()); rec.Code != 404 {
		t.Errorf("stranger view status = %d, want 404", rec.Code)
	}
}

func TestUpdateProfileSelf(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := f.CreateParent(ctx, "Old Name", "old@example.com")
	req := testutil.WithUser(
		httptest.NewRequest("PATCH", "/users/me",
			strings.NewReader(`{"email":"new@example.com","display_name":"New Name"}`)),
		testutil.TestUser{ID: u.ID.Hex(), Role: "parent"})
	rec := httptest.NewRecorder()
	h.HandleUpdateMe(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "new@example.com" || got.DisplayName != "New Name" {
		t.Errorf("profile = %q %q", got.Email, got.DisplayName)
	}
	if got.Role != "parent" {
		t.Errorf("role changed by profile update: %q", got.Role)
	}
}

func TestChangePassword(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := f.CreateParent(ctx, "Holder", "holder@example.com")
	hash, err := bcrypt.GenerateFromPassword([]byte("original-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Users.SetPasswordHash(ctx, u.ID, string(hash)); err != nil {
		t.Fatalf("SetPasswordHash: %v", err)
	}

	change := func(as testutil.TestUser, body string) *httptest.ResponseRecorder {
		req := testutil.WithUser(
			httptest.NewRequest("PUT", "/users/me/password", strings.NewReader(body)), as)
		rec := httptest.NewRecorder()
		h.HandleChangePassword(rec, req)
		return rec
	}
	self := testutil.TestUser{ID: u.ID.Hex(), Role: "parent"}

	t.Run("wrong current password rejected", func(t *testing.T) {
		rec := change(self, `{"current_password":"guess","new_password":"replacement-pass"}`)
		if rec.Code != 403 {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("short new password rejected", func(t *testing.T) {
		rec := change(self, `{"current_password":"original-pass","new_password":"tiny"}`)
		if rec.Code != 400 {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("correct current password replaces the hash", func(t *testing.T) {
		rec := change(self, `{"current_password":"original-pass","new_password":"replacement-pass"}`)
		if rec.Code != 200 {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		got, err := h.Users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("replacement-pass")) != nil {
			t.Error("new password does not verify against stored hash")
		}
	})

	t.Run("external sign-in accounts have no password", func(t *testing.T) {
		ext, err := h.Users.Create(ctx, models.User{
			Email:       "sso@example.com",
			DisplayName: "SSO Only",
			Role:        "parent",
			AuthMethod:  "google",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		rec := change(testutil.TestUser{ID: ext.ID.Hex(), Role: "parent"},
			`{"current_password":"anything-at-all","new_password":"replacement-pass"}`)
		if rec.Code != 400 {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestSetRole(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := f.CreateParent(ctx, "Promote", "promote@example.com")
	body := `{"role":"school"}`

	doPut := func(as testutil.TestUser) *httptest.ResponseRecorder {
		req := testutil.WithUser(
			testutil.WithChiURLParam(
				httptest.NewRequest("PUT", "/users/"+u.ID.Hex()+"/role", strings.NewReader(body)),
				"id", u.ID.Hex()),
			as)
		rec := httptest.NewRecorder()
		h.HandleSetRole(rec, req)
		return rec
	}

	if rec := doPut(testutil.ParentUser()); rec.Code != 404 {
		t.Errorf("parent role change status = %d, want 404", rec.Code)
	}

	if rec := doPut(testutil.AdminUser()); rec.Code != 200 {
		t.Fatalf("admin role change status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Role != "school" {
		t.Errorf("role = %q, want school", got.Role)
	}
}

func TestDeleteAdminOnly(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := f.CreateParent(ctx, "Doomed", "doomed@example.com")

	doDelete := func(as testutil.TestUser) *httptest.ResponseRecorder {
		req := testutil.WithUser(
			testutil.WithChiURLParam(
				httptest.NewRequest("DELETE", "/users/"+u.ID.Hex(), nil), "id", u.ID.Hex()),
			as)
		rec := httptest.NewRecorder()
		h.HandleDelete(rec, req)
		return rec
	}

	if rec := doDelete(testutil.ParentUser()); rec.Code != 404 {
		t.Errorf("parent delete status = %d, want 404", rec.Code)
	}
	if rec := doDelete(testutil.AdminUser()); rec.Code != 200 {
		t.Fatalf("admin delete status = %d", rec.Code)
	}
	if _, err := h.Users.GetByID(ctx, u.ID); err == nil {
		t.Errorf("user still present after delete")
	}
}

func TestSetActive(t *testing.T) {
	h, f := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := f.CreateParent(ctx, "Pause", "pause@example.com")
	req := testutil.WithUser(
		testutil.WithChiURLParam(
			httptest.NewRequest("PUT", "/users/"+u.ID.Hex()+"/active",
				strings.NewReader(`{"is_active":false}`)),
			"id", u.ID.Hex()),
		testutil.AdminUser())
	rec := httptest.NewRecorder()
	h.HandleSetActive(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.IsActive {
		t.Errorf("user still active")
	}
}
