// internal/domain/models/saferesource.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SafeResource is an entry in the safety-resource library: guides,
// hotlines, and educational material shown to all signed-in users.
// Body is stored as sanitized HTML.
type SafeResource struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title    string             `bson:"title" json:"title"`
	TitleCI  string             `bson:"title_ci" json:"-"`
	Category string             `bson:"category" json:"category"` // guide | hotline | education | other
	Body     string             `bson:"body" json:"body"`
	LinkURL  string             `bson:"link_url,omitempty" json:"link_url,omitempty"`
	IsActive bool               `bson:"is_active" json:"is_active"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
