// Package childpolicy provides the authorization decisions for child
// profiles.
//
// Authorization rules:
//   - Admins can create, see, and manage all children
//   - Parents can create children (always listed as a guardian themselves)
//     and see/manage exactly the children whose guardians list contains them
//   - Schools can see children enrolled at their school, nothing more
//   - Authorities and community leaders can see all children but manage none
//
// All functions are pure: they decide on an Actor and in-memory records,
// never touch the database, and are the only place child access rules live.
// Handlers translate the ListScope into a store query; stores never widen it.
package childpolicy

import (
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListScope describes which children an actor may list. Exactly one of
// All / GuardianID / SchoolID is meaningful when CanList is true; Empty
// means the actor may ask but their visible set is known to be empty
// (a school account with no school assigned), so callers skip the query.
type ListScope struct {
	CanList    bool
	All        bool
	Empty      bool
	GuardianID primitive.ObjectID // filter: guardians array-contains this id
	SchoolID   primitive.ObjectID // filter: school_id equals this id
}

// List determines the child list scope for the actor.
func List(a authz.Actor) ListScope {
	switch {
	case a.IsAdmin(), a.IsAuthority(), a.HasRole(authz.RoleCommunity):
		return ListScope{CanList: true, All: true}
	case a.IsParent():
		return ListScope{CanList: true, GuardianID: a.ID}
	case a.IsSchool():
		if a.SchoolID == primitive.NilObjectID {
			return ListScope{CanList: true, Empty: true}
		}
		return ListScope{CanList: true, SchoolID: a.SchoolID}
	default:
		return ListScope{}
	}
}

// CanCreate reports whether the actor may register a child.
func CanCreate(a authz.Actor) bool {
	return a.IsAdmin() || a.IsParent()
}

// CanView reports whether the actor may read the given child record.
func CanView(a authz.Actor, c *models.Child) bool {
	if c == nil {
		return false
	}
	if a.IsAdmin() || a.IsAuthority() || a.HasRole(authz.RoleCommunity) {
		return true
	}
	if a.IsParent() && isGuardian(c, a.ID) {
		return true
	}
	if a.IsSchool() && c.SchoolID != nil && a.SchoolID != primitive.NilObjectID && *c.SchoolID == a.SchoolID {
		return true
	}
	return false
}

// CanManage reports whether the actor may update or delete the child.
// Only admins and guardians qualify. Callers must surface a deny to an
// actor who cannot even view the child as not-found, never forbidden.
func CanManage(a authz.Actor, c *models.Child) bool {
	if c == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	return a.IsParent() && isGuardian(c, a.ID)
}

// NormalizeGuardians returns the guardian list with the acting parent
// guaranteed present, regardless of what the client payload carried.
// Admin actors are not implicitly added.
func NormalizeGuardians(a authz.Actor, guardians []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(guardians)+1)
	seen := make(map[primitive.ObjectID]struct{}, len(guardians)+1)
	for _, g := range guardians {
		if g == primitive.NilObjectID {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	if a.IsParent() && !a.IsAdmin() {
		if _, ok := seen[a.ID]; !ok {
			out = append(out, a.ID)
		}
	}
	return out
}

func isGuardian(c *models.Child, userID primitive.ObjectID) bool {
	for _, g := range c.Guardians {
		if g == userID {
			return true
		}
	}
	return false
}
