package saferesources

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/normalize"
	"github.com/uncip/guardhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("safe_resources")}
}

// ErrNotFound is returned when no resource matches the lookup.
var ErrNotFound = apperr.E(apperr.NotFound, "resource not found")

// Create inserts a new safety resource with the visibility the caller set.
func (s *Store) Create(ctx context.Context, r models.SafeResource) (models.SafeResource, error) {
	r.ID = primitive.NewObjectID()
	r.Title = normalize.Name(r.Title)
	r.TitleCI = text.Fold(r.Title)

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.SafeResource{}, err
	}
	return r, nil
}

// Get loads a resource by ID. When activeOnly is set, inactive resources
// read the same as missing ones.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID, activeOnly bool) (*models.SafeResource, error) {
	filter := bson.M{"_id": id}
	if activeOnly {
		filter["is_active"] = true
	}

	var r models.SafeResource
	if err := s.c.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// List returns resources sorted by title, optionally filtered by category.
// When activeOnly is set, only active resources are returned.
func (s *Store) List(ctx context.Context, category string, activeOnly bool) ([]models.SafeResource, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	if activeOnly {
		filter["is_active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "title_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var resources []models.SafeResource
	if err := cur.All(ctx, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// Update holds the editable fields of a resource.
type Update struct {
	Title    string
	Category string
	Body     string
	LinkURL  string
	IsActive bool
}

// Apply replaces a resource's editable fields.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	title := normalize.Name(upd.Title)
	set := bson.M{
		"title":      title,
		"title_ci":   text.Fold(title),
		"category":   upd.Category,
		"body":       upd.Body,
		"link_url":   upd.LinkURL,
		"is_active":  upd.IsActive,
		"updated_at": time.Now(),
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

// Delete removes a resource. Returns ErrNotFound if no resource matched.
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
