package authz_test

import (
	"testing"

	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFromSession_NoUser(t *testing.T) {
	if _, ok := authz.FromSession(nil); ok {
		t.Error("nil session user must not resolve to an actor")
	}
	if _, ok := authz.FromSession(&auth.SessionUser{}); ok {
		t.Error("session user without ID must not resolve to an actor")
	}
}

func TestFromSession_MalformedID(t *testing.T) {
	if _, ok := authz.FromSession(&auth.SessionUser{ID: "not-an-object-id", Role: "admin"}); ok {
		t.Error("malformed user ID must fail closed")
	}
}

func TestFromSession_DefaultsToParent(t *testing.T) {
	id := primitive.NewObjectID()
	tests := []struct {
		name string
		role string
	}{
		{"empty role", ""},
		{"unknown role", "superuser"},
		{"whitespace role", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := authz.FromSession(&auth.SessionUser{ID: id.Hex(), Role: tt.role})
			if !ok {
				t.Fatal("expected actor")
			}
			if a.PrimaryRole != authz.RoleParent {
				t.Errorf("unresolvable role must default to parent, got %q", a.PrimaryRole)
			}
			if a.IsAdmin() {
				t.Error("defaulted actor must never be admin")
			}
		})
	}
}

func TestFromSession_CaseInsensitiveRoles(t *testing.T) {
	id := primitive.NewObjectID()
	a, ok := authz.FromSession(&auth.SessionUser{ID: id.Hex(), Role: "Admin"})
	if !ok {
		t.Fatal("expected actor")
	}
	if a.PrimaryRole != authz.RoleAdmin {
		t.Errorf("role should be lowercased: got %q", a.PrimaryRole)
	}
	if !a.IsAdmin() {
		t.Error(`actor with role "Admin" must be treated identically to "admin"`)
	}
}

func TestFromSession_RolesDefaultToPrimary(t *testing.T) {
	id := primitive.NewObjectID()
	a, _ := authz.FromSession(&auth.SessionUser{ID: id.Hex(), Role: "authority"})
	if len(a.Roles) != 1 || a.Roles[0] != authz.RoleAuthority {
		t.Errorf("roles should default to [primary role], got %v", a.Roles)
	}
}

func TestFromSession_PrimaryAlwaysInRoles(t *testing.T) {
	id := primitive.NewObjectID()
	a, _ := authz.FromSession(&auth.SessionUser{
		ID:    id.Hex(),
		Role:  "school",
		Roles: []string{"community"},
	})
	if !a.HasRole(authz.RoleSchool) {
		t.Error("primary role must always be in the role set")
	}
	if !a.HasRole(authz.RoleCommunity) {
		t.Error("listed secondary role missing")
	}
}

func TestFromSession_UnknownRolesDropped(t *testing.T) {
	id := primitive.NewObjectID()
	a, _ := authz.FromSession(&auth.SessionUser{
		ID:    id.Hex(),
		Role:  "parent",
		Roles: []string{"parent", "root", "wheel"},
	})
	if len(a.Roles) != 1 {
		t.Errorf("unknown roles must be dropped, got %v", a.Roles)
	}
}

func TestHasRole_EitherPrimaryOrSetSuffices(t *testing.T) {
	id := primitive.NewObjectID()

	// admin only in the role set, not primary
	a, _ := authz.FromSession(&auth.SessionUser{
		ID:    id.Hex(),
		Role:  "parent",
		Roles: []string{"parent", "ADMIN"},
	})
	if !a.IsAdmin() {
		t.Error("admin membership in roles must authorize even when primary is parent")
	}
}

func TestFromSession_SchoolID(t *testing.T) {
	id := primitive.NewObjectID()
	school := primitive.NewObjectID()

	a, _ := authz.FromSession(&auth.SessionUser{ID: id.Hex(), Role: "school", SchoolID: school.Hex()})
	if a.SchoolID != school {
		t.Errorf("school ID not carried: got %v", a.SchoolID)
	}

	b, _ := authz.FromSession(&auth.SessionUser{ID: id.Hex(), Role: "school", SchoolID: "garbage"})
	if b.SchoolID != primitive.NilObjectID {
		t.Error("malformed school ID should resolve to NilObjectID")
	}
}
