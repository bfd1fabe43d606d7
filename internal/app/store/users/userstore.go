package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uncip/guardhub/internal/app/policy/userpolicy"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/normalize"
	"github.com/uncip/guardhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = apperr.E(apperr.Conflict, "a user with this email already exists")
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = apperr.E(apperr.NotFound, "user not found")

	errBadRole = apperr.E(apperr.Invalid, `role must be "admin"|"parent"|"school"|"authority"|"community"`)
)

// Create inserts a new user after normalizing and validating fields.
// An empty role defaults to parent; unknown roles are rejected.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	u.AuthMethod = normalize.AuthMethod(u.AuthMethod)
	u.Role = normalize.Role(u.Role)
	u.Roles = normalize.Roles(u.Roles)

	if u.Role == "" {
		u.Role = string(authz.DefaultRole)
	}
	if !authz.KnownRole(authz.Role(u.Role)) {
		return models.User{}, errBadRole
	}
	for _, r := range u.Roles {
		if !authz.KnownRole(authz.Role(r)) {
			return models.User{}, errBadRole
		}
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{u.Role}
	}

	u.IsActive = true
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user by ObjectID. Returns ErrNotFound if no user exists.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email.
// Returns ErrNotFound if no user exists.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns the users visible under the given scope, sorted by display name.
func (s *Store) List(ctx context.Context, scope userpolicy.ListScope) ([]models.User, error) {
	filter := bson.M{}
	if !scope.All {
		filter["_id"] = scope.SelfID
	}

	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ProfileUpdate holds the fields a user may change on their own record.
type ProfileUpdate struct {
	DisplayName string
	Email       string
}

// UpdateProfile updates a user's own editable fields.
// Returns ErrDuplicateEmail if the email belongs to another user.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	name := normalize.Name(upd.DisplayName)
	set := bson.M{
		"display_name":    name,
		"display_name_ci": text.Fold(name),
		"email":           normalize.Email(upd.Email),
		"updated_at":      time.Now(),
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRole replaces a user's primary role and role set.
func (s *Store) UpdateRole(ctx context.Context, id primitive.ObjectID, role string, roles []string) error {
	role = normalize.Role(role)
	if !authz.KnownRole(authz.Role(role)) {
		return errBadRole
	}
	roles = normalize.Roles(roles)
	for _, r := range roles {
		if !authz.KnownRole(authz.Role(r)) {
			return errBadRole
		}
	}
	if len(roles) == 0 {
		roles = []string{role}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":       role,
		"roles":      roles,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces a user's stored password hash.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive enables or disables a user account.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by ID. Returns ErrNotFound if no user matched.
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
