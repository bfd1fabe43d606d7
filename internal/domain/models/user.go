// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is the optional affiliation embedded on a user profile
// (a school, an authority office, or a community group).
type Organization struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Name string             `bson:"name" json:"name"`
	Type string             `bson:"type" json:"type"` // school | authority | community
}

// User represents every account on the platform: parents, school staff,
// authorities, community leaders, and admins.
//
// NOTE:
//   - Role is the primary role; Roles may carry additional grants.
//     Both are lowercase. Role changes are admin-only.
//   - IsActive is an explicit soft-disable flag, not a delete substitute.
type User struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email         string              `bson:"email" json:"email"`
	DisplayName   string              `bson:"display_name" json:"display_name"`
	DisplayNameCI string              `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	PasswordHash  string              `bson:"password_hash,omitempty" json:"-"`
	AuthMethod    string              `bson:"auth_method,omitempty" json:"auth_method,omitempty"` // password | google
	Role          string              `bson:"role" json:"role"`
	Roles         []string            `bson:"roles,omitempty" json:"roles,omitempty"`
	Organization  *Organization       `bson:"organization,omitempty" json:"organization,omitempty"`
	SchoolID      *primitive.ObjectID `bson:"school_id,omitempty" json:"school_id,omitempty"`
	IsActive      bool                `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
