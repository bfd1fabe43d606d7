package childstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uncip/guardhub/internal/app/policy/childpolicy"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/normalize"
	"github.com/uncip/guardhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("children")}
}

var (
	// ErrNotFound covers both missing children and children the caller's
	// scope excludes, so callers cannot confirm records they may not see.
	ErrNotFound = apperr.E(apperr.NotFound, "child not found")

	errNoGuardians = apperr.E(apperr.Invalid, "a child must have at least one guardian")
)

// Create inserts a new child record with normalized names and stamps.
// Guardians must already be resolved by the caller and non-empty.
func (s *Store) Create(ctx context.Context, c models.Child) (models.Child, error) {
	if len(c.Guardians) == 0 {
		return models.Child{}, errNoGuardians
	}

	c.ID = primitive.NewObjectID()
	c.FirstName = normalize.Name(c.FirstName)
	c.LastName = normalize.Name(c.LastName)
	c.FullNameCI = text.Fold(c.FirstName + " " + c.LastName)
	c.IsActive = true

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Child{}, err
	}
	return c, nil
}

// Get loads a child by ID constrained to the given scope. A child outside
// the scope reads the same as a missing one.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID, scope childpolicy.ListScope) (*models.Child, error) {
	filter := scopeFilter(scope)
	if filter == nil {
		return nil, ErrNotFound
	}
	filter["_id"] = id

	var c models.Child
	if err := s.c.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetAny loads a child by ID without visibility constraints. Intended for
// policy checks that need the record itself to decide.
func (s *Store) GetAny(ctx context.Context, id primitive.ObjectID) (*models.Child, error) {
	var c models.Child
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns the children visible under the given scope, sorted by name.
func (s *Store) List(ctx context.Context, scope childpolicy.ListScope) ([]models.Child, error) {
	filter := scopeFilter(scope)
	if filter == nil {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var children []models.Child
	if err := cur.All(ctx, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// ListIDs returns the IDs of children visible under the given scope.
// Used to constrain alert queries to visible children.
func (s *Store) ListIDs(ctx context.Context, scope childpolicy.ListScope) ([]primitive.ObjectID, error) {
	filter := scopeFilter(scope)
	if filter == nil {
		return nil, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Update holds the fields a guardian or admin may change on a child.
type Update struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Gender      string
	Guardians   []primitive.ObjectID
	SchoolID    *primitive.ObjectID
	MedicalInfo string
}

// Apply replaces a child's editable fields. Guardians must remain non-empty.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	if len(upd.Guardians) == 0 {
		return errNoGuardians
	}

	first := normalize.Name(upd.FirstName)
	last := normalize.Name(upd.LastName)
	set := bson.M{
		"first_name":    first,
		"last_name":     last,
		"full_name_ci":  text.Fold(first + " " + last),
		"date_of_birth": upd.DateOfBirth,
		"gender":        upd.Gender,
		"guardians":     upd.Guardians,
		"school_id":     upd.SchoolID,
		"medical_info":  upd.MedicalInfo,
		"updated_at":    time.Now(),
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

// Delete removes a child record. Returns ErrNotFound if no record matched.
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

// scopeFilter translates a visibility scope into a query filter.
// A nil return means the scope admits nothing.
func scopeFilter(scope childpolicy.ListScope) bson.M {
	switch {
	case !scope.CanList, scope.Empty:
		return nil
	case scope.All:
		return bson.M{}
	case scope.GuardianID != primitive.NilObjectID:
		return bson.M{"guardians": scope.GuardianID}
	case scope.SchoolID != primitive.NilObjectID:
		return bson.M{"school_id": scope.SchoolID}
	default:
		return nil
	}
}
