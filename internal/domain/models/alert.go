// internal/domain/models/alert.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert statuses. Active alerts may transition to resolved or cancelled;
// resolved, cancelled, and false are terminal.
const (
	AlertStatusActive    = "active"
	AlertStatusResolved  = "resolved"
	AlertStatusCancelled = "cancelled"
	AlertStatusFalse     = "false"
)

// Alert types. At most one active alert may exist per (child, type) pair.
const (
	AlertTypeMissing = "missing"
	AlertTypeMedical = "medical"
	AlertTypeDanger  = "danger"
	AlertTypeOther   = "other"
)

// ValidAlertType reports whether t is a known alert type.
func ValidAlertType(t string) bool {
	switch t {
	case AlertTypeMissing, AlertTypeMedical, AlertTypeDanger, AlertTypeOther:
		return true
	}
	return false
}

// TerminalAlertStatus reports whether s is a terminal status
// (no further transitions allowed).
func TerminalAlertStatus(s string) bool {
	switch s {
	case AlertStatusResolved, AlertStatusCancelled, AlertStatusFalse:
		return true
	}
	return false
}

// Alert is a safety alert raised against a registered child.
type Alert struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChildID          primitive.ObjectID `bson:"child_id" json:"child_id"`
	Status           string             `bson:"status" json:"status"`
	AlertType        string             `bson:"alert_type" json:"alert_type"`
	Description      string             `bson:"description" json:"description"`
	LastSeenLocation string             `bson:"last_seen_location,omitempty" json:"last_seen_location,omitempty"`
	LastSeenWearing  string             `bson:"last_seen_wearing,omitempty" json:"last_seen_wearing,omitempty"`
	ContactInfo      string             `bson:"contact_info" json:"contact_info"`
	CreatedBy        primitive.ObjectID `bson:"created_by" json:"created_by"`

	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updated_at"`
	ResolvedAt *time.Time          `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy *primitive.ObjectID `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
}
