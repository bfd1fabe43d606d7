// internal/domain/models/child.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Child is a registered child profile.
//
// Guardians is never empty and always contains the parent who created the
// record; a parent's visibility of a child is defined as membership in
// Guardians. SchoolID links the child to a school organization so school
// accounts can see their enrolled children.
type Child struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FirstName   string               `bson:"first_name" json:"first_name"`
	LastName    string               `bson:"last_name" json:"last_name"`
	FullNameCI  string               `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	DateOfBirth time.Time            `bson:"date_of_birth" json:"date_of_birth"`
	Gender      string               `bson:"gender" json:"gender"`
	Guardians   []primitive.ObjectID `bson:"guardians" json:"guardians"`
	SchoolID    *primitive.ObjectID  `bson:"school_id,omitempty" json:"school_id,omitempty"`
	MedicalInfo string               `bson:"medical_info,omitempty" json:"medical_info,omitempty"`
	IsActive    bool                 `bson:"is_active" json:"is_active"`
	CreatedBy   primitive.ObjectID   `bson:"created_by" json:"created_by"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
