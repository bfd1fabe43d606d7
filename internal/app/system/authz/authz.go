// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the resolved caller identity the policy packages decide on.
// It is built fresh from session data on every request and never cached
// server-side; no other code path reads role data off the raw session.
type Actor struct {
	ID          primitive.ObjectID
	Name        string
	PrimaryRole Role
	Roles       []Role
	SchoolID    primitive.ObjectID // NilObjectID unless the actor is school staff
}

// FromSession projects raw session data into an Actor. Pure; no I/O.
//
// Rules:
//   - no user or malformed user ID → not ok (treat as unauthenticated)
//   - missing role → DefaultRole (parent), never a privileged default
//   - missing roles list → [primary role]
//   - all roles lowercased so casing cannot bypass privilege checks
func FromSession(u *auth.SessionUser) (Actor, bool) {
	if u == nil || u.ID == "" {
		return Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return Actor{}, false
	}

	primary := Role(normalize.Role(u.Role))
	if !KnownRole(primary) {
		primary = DefaultRole
	}

	roles := make([]Role, 0, len(u.Roles)+1)
	for _, r := range normalize.Roles(u.Roles) {
		if role := Role(r); KnownRole(role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []Role{primary}
	} else if !containsRole(roles, primary) {
		roles = append(roles, primary)
	}

	a := Actor{ID: id, Name: u.Name, PrimaryRole: primary, Roles: roles}
	if u.SchoolID != "" {
		if sid, err := primitive.ObjectIDFromHex(u.SchoolID); err == nil {
			a.SchoolID = sid
		}
	}
	return a, true
}

// ActorCtx resolves the Actor for the current request, or ok=false when the
// request is unauthenticated.
func ActorCtx(r *http.Request) (Actor, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return Actor{}, false
	}
	return FromSession(u)
}

// HasRole reports whether the actor holds the role, either as the primary
// role or anywhere in the role set. Either suffices for authorization.
func (a Actor) HasRole(role Role) bool {
	if a.PrimaryRole == role {
		return true
	}
	return containsRole(a.Roles, role)
}

// IsAdmin reports whether the actor is admin-authorized.
func (a Actor) IsAdmin() bool { return a.HasRole(RoleAdmin) }

// IsParent reports whether the actor holds the parent role.
func (a Actor) IsParent() bool { return a.HasRole(RoleParent) }

// IsSchool reports whether the actor holds the school role.
func (a Actor) IsSchool() bool { return a.HasRole(RoleSchool) }

// IsAuthority reports whether the actor holds the authority role.
func (a Actor) IsAuthority() bool { return a.HasRole(RoleAuthority) }

func containsRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
