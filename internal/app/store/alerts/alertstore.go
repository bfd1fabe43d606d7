package alertstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("alerts")}
}

var (
	// ErrNotFound is returned when no alert matches the lookup.
	ErrNotFound = apperr.E(apperr.NotFound, "alert not found")
	// ErrDuplicateActive is returned when the child already has an active
	// alert of the same type.
	ErrDuplicateActive = apperr.E(apperr.Conflict, "an active alert of this type already exists for this child")
	// ErrAlreadyClosed is returned when resolving or cancelling an alert
	// that is no longer active.
	ErrAlreadyClosed = apperr.E(apperr.Conflict, "alert is no longer active")

	errBadType = apperr.E(apperr.Invalid, `alert type must be "missing"|"medical"|"danger"|"other"`)
)

// Create inserts a new active alert after checking for an existing active
// alert of the same type. The existence check and insert are separate
// operations, so two concurrent creates can both pass the check; the
// partial unique index on (child_id, alert_type, status=active) rejects
// the second insert and it surfaces as ErrDuplicateActive.
func (s *Store) Create(ctx context.Context, a models.Alert) (models.Alert, error) {
	if !models.ValidAlertType(a.AlertType) {
		return models.Alert{}, errBadType
	}

	exists, err := s.ActiveExists(ctx, a.ChildID, a.AlertType)
	if err != nil {
		return models.Alert{}, err
	}
	if exists {
		return models.Alert{}, ErrDuplicateActive
	}

	a.ID = primitive.NewObjectID()
	a.Status = models.AlertStatusActive
	a.ResolvedAt = nil
	a.ResolvedBy = nil

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Alert{}, ErrDuplicateActive
		}
		return models.Alert{}, err
	}
	return a, nil
}

// ActiveExists reports whether the child has an active alert of the given type.
func (s *Store) ActiveExists(ctx context.Context, childID primitive.ObjectID, alertType string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"child_id":   childID,
		"alert_type": alertType,
		"status":     models.AlertStatusActive,
	}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Get loads an alert by ID. Returns ErrNotFound if no alert exists.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	var a models.Alert
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAll returns every alert, newest first. Optionally filtered by status.
func (s *Store) ListAll(ctx context.Context, status string) ([]models.Alert, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.find(ctx, filter)
}

// ListByChildren returns alerts for the given child IDs, newest first.
// An empty ID set returns nothing.
func (s *Store) ListByChildren(ctx context.Context, childIDs []primitive.ObjectID, status string) ([]models.Alert, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{"child_id": bson.M{"$in": childIDs}}
	if status != "" {
		filter["status"] = status
	}
	return s.find(ctx, filter)
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var alerts []models.Alert
	if err := cur.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Update holds the alert fields that may change while the alert is open.
type Update struct {
	Description      string
	LastSeenLocation string
	LastSeenWearing  string
	ContactInfo      string
}

// Apply updates an alert's descriptive fields.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{
		"description":        upd.Description,
		"last_seen_location": upd.LastSeenLocation,
		"last_seen_wearing":  upd.LastSeenWearing,
		"contact_info":       upd.ContactInfo,
		"updated_at":         time.Now(),
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close transitions an active alert to the given terminal status. The filter
// matches only active alerts, so concurrent closes settle on the first write:
// a second attempt distinguishes a missing alert (ErrNotFound) from one that
// already left the active state (ErrAlreadyClosed). Resolution stamps are set
// only for a genuine resolution; cancelled and false alerts never had an
// outcome to record.
func (s *Store) Close(ctx context.Context, id primitive.ObjectID, status string, by primitive.ObjectID) error {
	if !models.TerminalAlertStatus(status) {
		return apperr.E(apperr.Invalid, "not a terminal alert status")
	}

	now := time.Now()
	set := bson.M{
		"status":     status,
		"updated_at": now,
	}
	if status == models.AlertStatusResolved {
		set["resolved_at"] = now
		set["resolved_by"] = by
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AlertStatusActive},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		err := s.c.FindOne(ctx, bson.M{"_id": id}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrAlreadyClosed
	}
	return nil
}

// Delete removes an alert. Returns ErrNotFound if no alert matched.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
