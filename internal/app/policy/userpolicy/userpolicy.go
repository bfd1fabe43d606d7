// Package userpolicy provides the authorization decisions for user
// accounts.
//
// Authorization rules:
//   - Admins can create, list, update, and delete any account, and are the
//     only role that can change role assignments
//   - Every other role sees and edits exactly one account: their own, and
//     never its role fields
package userpolicy

import (
	"github.com/uncip/guardhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListScope describes which users an actor may list: everything for
// admins, self only for everyone else.
type ListScope struct {
	All    bool
	SelfID primitive.ObjectID
}

// List determines the user list scope for the actor.
func List(a authz.Actor) ListScope {
	if a.IsAdmin() {
		return ListScope{All: true}
	}
	return ListScope{SelfID: a.ID}
}

// CanCreate reports whether the actor may create accounts directly
// (self-registration is a separate, unauthenticated flow).
func CanCreate(a authz.Actor) bool {
	return a.IsAdmin()
}

// CanView reports whether the actor may read the target account.
func CanView(a authz.Actor, targetID primitive.ObjectID) bool {
	return a.IsAdmin() || a.ID == targetID
}

// CanUpdate reports whether the actor may update the target account's
// profile fields. Role changes are gated separately by CanChangeRole.
func CanUpdate(a authz.Actor, targetID primitive.ObjectID) bool {
	return a.IsAdmin() || a.ID == targetID
}

// CanChangeRole reports whether the actor may change role assignments or
// the active flag on any account.
func CanChangeRole(a authz.Actor) bool {
	return a.IsAdmin()
}

// CanDelete reports whether the actor may hard-delete the target account.
func CanDelete(a authz.Actor) bool {
	return a.IsAdmin()
}
