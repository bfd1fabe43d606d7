// Package alertpolicy provides the authorization decisions for child
// safety alerts.
//
// Alert visibility is derived from child visibility: a parent sees the
// alerts of children they are a guardian of, a school sees the alerts of
// its enrolled children, and admins, authorities, and community leaders
// see all alerts. Listing for parent/school therefore resolves the
// visible child ids first and filters alerts by membership in that set;
// an empty id set short-circuits to an empty result without touching the
// alert collection.
package alertpolicy

import (
	"github.com/uncip/guardhub/internal/app/policy/childpolicy"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/domain/models"
)

// ListScope describes which alerts an actor may list. When All is false,
// Children carries the child scope to resolve into a set of child ids
// before querying alerts.
type ListScope struct {
	CanList  bool
	All      bool
	Children childpolicy.ListScope
}

// List determines the alert list scope for the actor.
func List(a authz.Actor) ListScope {
	if a.IsAdmin() || a.IsAuthority() || a.HasRole(authz.RoleCommunity) {
		return ListScope{CanList: true, All: true}
	}
	child := childpolicy.List(a)
	if !child.CanList {
		return ListScope{}
	}
	return ListScope{CanList: true, Children: child}
}

// CanCreate reports whether the actor may raise an alert for the given
// child. The child must already have been loaded (and found); parents may
// only alert on children they are a guardian of.
func CanCreate(a authz.Actor, c *models.Child) bool {
	if c == nil {
		return false
	}
	if a.IsAdmin() || a.IsAuthority() {
		return true
	}
	return a.IsParent() && childpolicy.CanManage(a, c)
}

// CanView reports whether the actor may read the alert. Visibility joins
// through the alert's child record.
func CanView(a authz.Actor, alert *models.Alert, c *models.Child) bool {
	if alert == nil {
		return false
	}
	if a.IsAdmin() || a.IsAuthority() || a.HasRole(authz.RoleCommunity) {
		return true
	}
	return childpolicy.CanView(a, c)
}

// CanUpdate reports whether the actor may modify the alert (including
// status transitions). Admins and authorities may update any alert; a
// parent may only update alerts they created.
func CanUpdate(a authz.Actor, alert *models.Alert) bool {
	if alert == nil {
		return false
	}
	if a.IsAdmin() || a.IsAuthority() {
		return true
	}
	return a.IsParent() && alert.CreatedBy == a.ID
}

// CanDelete reports whether the actor may delete an alert. Admin only.
func CanDelete(a authz.Actor) bool {
	return a.IsAdmin()
}
