package userpolicy_test

import (
	"testing"

	"github.com/uncip/guardhub/internal/app/policy/userpolicy"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func actor(role authz.Role) authz.Actor {
	return authz.Actor{ID: primitive.NewObjectID(), PrimaryRole: role, Roles: []authz.Role{role}}
}

func TestList(t *testing.T) {
	s := userpolicy.List(actor(authz.RoleAdmin))
	if !s.All {
		t.Errorf("admin should list all users, got %+v", s)
	}

	for _, role := range []authz.Role{authz.RoleParent, authz.RoleSchool, authz.RoleAuthority, authz.RoleCommunity} {
		a := actor(role)
		s := userpolicy.List(a)
		if s.All || s.SelfID != a.ID {
			t.Errorf("%s should only list themselves, got %+v", role, s)
		}
	}
}

func TestCanViewAndUpdate_SelfOrAdmin(t *testing.T) {
	self := actor(authz.RoleParent)
	other := primitive.NewObjectID()

	if !userpolicy.CanView(self, self.ID) {
		t.Error("users must see their own record")
	}
	if userpolicy.CanView(self, other) {
		t.Error("non-admins must not see other users")
	}
	if !userpolicy.CanView(actor(authz.RoleAdmin), other) {
		t.Error("admins see every user")
	}

	if !userpolicy.CanUpdate(self, self.ID) {
		t.Error("users must be able to update their own profile")
	}
	if userpolicy.CanUpdate(self, other) {
		t.Error("non-admins must not update other users")
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	admin := actor(authz.RoleAdmin)

	if !userpolicy.CanCreate(admin) || !userpolicy.CanChangeRole(admin) || !userpolicy.CanDelete(admin) {
		t.Error("admin must hold create, role-change and delete rights")
	}
	for _, role := range []authz.Role{authz.RoleParent, authz.RoleSchool, authz.RoleAuthority, authz.RoleCommunity} {
		a := actor(role)
		if userpolicy.CanCreate(a) || userpolicy.CanChangeRole(a) || userpolicy.CanDelete(a) {
			t.Errorf("%s must not hold admin-only user operations", role)
		}
	}
}
