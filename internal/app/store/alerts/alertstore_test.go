package alertstore_test

import (
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	alertstore "github.com/uncip/guardhub/internal/app/store/alerts"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/domain/models"
	"github.com/uncip/guardhub/internal/testutil"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	childID := primitive.NewObjectID()
	creator := primitive.NewObjectID()

	created, err := store.Create(ctx, models.Alert{
		ChildID:     childID,
		AlertType:   models.AlertTypeMissing,
		Description: "last seen at the park",
		CreatedBy:   creator,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Status != models.AlertStatusActive {
		t.Errorf("new alerts must start active, got %q", created.Status)
	}
	if created.ResolvedAt != nil || created.ResolvedBy != nil {
		t.Error("new alerts must have no resolution fields")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_RejectsUnknownType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.Alert{
		ChildID:   primitive.NewObjectID(),
		AlertType: "earthquake",
		CreatedBy: primitive.NewObjectID(),
	})
	if !apperr.IsCode(err, apperr.Invalid) {
		t.Errorf("unknown alert type should be invalid, got %v", err)
	}
}

func TestStore_Create_DuplicateActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	childID := primitive.NewObjectID()
	creator := primitive.NewObjectID()

	first, err := store.Create(ctx, models.Alert{
		ChildID:   childID,
		AlertType: models.AlertTypeMissing,
		CreatedBy: creator,
	})
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	// Same child, same type, still active: rejected.
	_, err = store.Create(ctx, models.Alert{
		ChildID:   childID,
		AlertType: models.AlertTypeMissing,
		CreatedBy: creator,
	})
	if !errors.Is(err, alertstore.ErrDuplicateActive) {
		t.Errorf("expected ErrDuplicateActive, got %v", err)
	}

	// A different type for the same child is fine.
	if _, err := store.Create(ctx, models.Alert{
		ChildID:   childID,
		AlertType: models.AlertTypeMedical,
		CreatedBy: creator,
	}); err != nil {
		t.Errorf("different type should be allowed: %v", err)
	}

	// Once resolved, the same type can be raised again.
	if err := store.Close(ctx, first.ID, models.AlertStatusResolved, creator); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Alert{
		ChildID:   childID,
		AlertType: models.AlertTypeMissing,
		CreatedBy: creator,
	}); err != nil {
		t.Errorf("resolved alert should not block a new one: %v", err)
	}
}

func TestStore_Create_ConcurrentDuplicatesSerialized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// The unique index is the backstop when two creates pass the
	// existence check before either inserts.
	if err := testutil.EnsureAlertActiveIndex(ctx, db); err != nil {
		t.Fatalf("EnsureAlertActiveIndex failed: %v", err)
	}

	childID := primitive.NewObjectID()
	creator := primitive.NewObjectID()

	const attempts = 8
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, err := store.Create(ctx, models.Alert{
				ChildID:     childID,
				AlertType:   models.AlertTypeMissing,
				Description: "last seen at school",
				CreatedBy:   creator,
			})
			results <- err
		}()
	}
	start.Done()

	var created, conflicts int
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			created++
		case errors.Is(err, alertstore.ErrDuplicateActive):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if conflicts != attempts-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
	}

	count, err := db.Collection("alerts").CountDocuments(ctx, bson.M{
		"child_id": childID,
		"status":   models.AlertStatusActive,
	})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("active alerts in collection = %d, want 1", count)
	}
}

func TestStore_Close(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	resolver := primitive.NewObjectID()
	alert, err := store.Create(ctx, models.Alert{
		ChildID:   primitive.NewObjectID(),
		AlertType: models.AlertTypeDanger,
		CreatedBy: creator,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Close(ctx, alert.ID, models.AlertStatusResolved, resolver); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := store.Get(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.AlertStatusResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
	if got.ResolvedAt == nil || got.ResolvedBy == nil || *got.ResolvedBy != resolver {
		t.Errorf("resolution fields not stamped: %+v", got)
	}

	// Closing twice surfaces the state conflict, not a missing record.
	err = store.Close(ctx, alert.ID, models.AlertStatusCancelled, resolver)
	if !errors.Is(err, alertstore.ErrAlreadyClosed) {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}

	// A genuinely missing alert is not-found.
	err = store.Close(ctx, primitive.NewObjectID(), models.AlertStatusResolved, resolver)
	if !apperr.IsCode(err, apperr.NotFound) {
		t.Errorf("expected not-found for missing alert, got %v", err)
	}

	// A non-terminal target status is rejected before touching the record.
	err = store.Close(ctx, alert.ID, models.AlertStatusActive, resolver)
	if !apperr.IsCode(err, apperr.Invalid) {
		t.Errorf("non-terminal status should be invalid, got %v", err)
	}
}

func TestStore_Close_OnlyResolvedStamps(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	closer := primitive.NewObjectID()
	for _, status := range []string{models.AlertStatusCancelled, models.AlertStatusFalse} {
		t.Run(status, func(t *testing.T) {
			alert, err := store.Create(ctx, models.Alert{
				ChildID:   primitive.NewObjectID(),
				AlertType: models.AlertTypeMissing,
				CreatedBy: creator,
			})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if err := store.Close(ctx, alert.ID, status, closer); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			got, err := store.Get(ctx, alert.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Status != status {
				t.Errorf("status = %q, want %q", got.Status, status)
			}
			if got.ResolvedAt != nil || got.ResolvedBy != nil {
				t.Errorf("%s closure must not record a resolution: %+v", status, got)
			}
		})
	}
}

func TestStore_ListByChildren(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	c1 := primitive.NewObjectID()
	c2 := primitive.NewObjectID()
	c3 := primitive.NewObjectID()

	a1 := fixtures.CreateAlert(ctx, c1, creator, models.AlertTypeMissing)
	a2 := fixtures.CreateAlert(ctx, c2, creator, models.AlertTypeMedical)
	fixtures.CreateAlert(ctx, c3, creator, models.AlertTypeDanger)

	alerts, err := store.ListByChildren(ctx, []primitive.ObjectID{c1, c2}, "")
	if err != nil {
		t.Fatalf("ListByChildren failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	seen := map[primitive.ObjectID]bool{}
	for _, a := range alerts {
		seen[a.ID] = true
	}
	if !seen[a1.ID] || !seen[a2.ID] {
		t.Errorf("wrong alerts returned: %v", seen)
	}

	// An empty child set short-circuits without querying.
	alerts, err = store.ListByChildren(ctx, nil, "")
	if err != nil {
		t.Fatalf("ListByChildren failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("empty child set must return nothing, got %d", len(alerts))
	}
}

func TestStore_ListAll_StatusFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := alertstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := primitive.NewObjectID()
	open := fixtures.CreateAlert(ctx, primitive.NewObjectID(), creator, models.AlertTypeMissing)
	closed := fixtures.CreateAlert(ctx, primitive.NewObjectID(), creator, models.AlertTypeMissing)
	if err := store.Close(ctx, closed.ID, models.AlertStatusResolved, creator); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	active, err := store.ListAll(ctx, models.AlertStatusActive)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != open.ID {
		t.Errorf("status filter should return only the open alert, got %d", len(active))
	}

	all, err := store.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list should return both alerts, got %d", len(all))
	}
}
