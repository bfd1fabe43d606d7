// internal/app/system/authz/roles.go
package authz

// Role is a normalized (lowercase) platform role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleParent    Role = "parent"
	RoleSchool    Role = "school"
	RoleAuthority Role = "authority"
	RoleCommunity Role = "community"
)

// DefaultRole is assigned when a session carries no usable role. It is the
// least-privileged role; sessions never default upward.
const DefaultRole = RoleParent

// KnownRole reports whether r is one of the platform roles.
func KnownRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleParent, RoleSchool, RoleAuthority, RoleCommunity:
		return true
	}
	return false
}
