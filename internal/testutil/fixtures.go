package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uncip/guardhub/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:            primitive.NewObjectID(),
		Email:         email,
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		AuthMethod:    "password",
		Role:          role,
		Roles:         []string{role},
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, "admin")
}

// CreateParent creates a test parent user.
func (f *Fixtures) CreateParent(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, "parent")
}

// CreateSchoolUser creates a test school user bound to the given school.
func (f *Fixtures) CreateSchoolUser(ctx context.Context, name, email string, schoolID primitive.ObjectID) models.User {
	f.t.Helper()

	u := f.CreateUser(ctx, name, email, "school")
	_, err := f.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"school_id": schoolID}})
	if err != nil {
		f.t.Fatalf("failed to set school id: %v", err)
	}
	u.SchoolID = &schoolID
	return u
}

// CreateChild creates a test child with the given guardians.
func (f *Fixtures) CreateChild(ctx context.Context, first, last string, guardians ...primitive.ObjectID) models.Child {
	f.t.Helper()

	now := time.Now().UTC()
	child := models.Child{
		ID:          primitive.NewObjectID(),
		FirstName:   first,
		LastName:    last,
		FullNameCI:  text.Fold(first + " " + last),
		DateOfBirth: now.AddDate(-8, 0, 0),
		Guardians:   guardians,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(guardians) > 0 {
		child.CreatedBy = guardians[0]
	}

	if _, err := f.db.Collection("children").InsertOne(ctx, child); err != nil {
		f.t.Fatalf("failed to create test child: %v", err)
	}
	return child
}

// CreateSchoolChild creates a test child enrolled at the given school.
func (f *Fixtures) CreateSchoolChild(ctx context.Context, first, last string, schoolID primitive.ObjectID, guardians ...primitive.ObjectID) models.Child {
	f.t.Helper()

	child := f.CreateChild(ctx, first, last, guardians...)
	_, err := f.db.Collection("children").UpdateOne(ctx,
		bson.M{"_id": child.ID},
		bson.M{"$set": bson.M{"school_id": schoolID}})
	if err != nil {
		f.t.Fatalf("failed to set child school: %v", err)
	}
	child.SchoolID = &schoolID
	return child
}

// CreateAlert creates an active alert for the given child.
func (f *Fixtures) CreateAlert(ctx context.Context, childID, createdBy primitive.ObjectID, alertType string) models.Alert {
	f.t.Helper()

	now := time.Now().UTC()
	alert := models.Alert{
		ID:          primitive.NewObjectID(),
		ChildID:     childID,
		Status:      models.AlertStatusActive,
		AlertType:   alertType,
		Description: "test alert",
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("alerts").InsertOne(ctx, alert); err != nil {
		f.t.Fatalf("failed to create test alert: %v", err)
	}
	return alert
}
