package audit_test

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/uncip/guardhub/internal/app/store/audit"
	"github.com/uncip/guardhub/internal/testutil"
)

func TestStore_AppendStampsTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.Append(ctx, audit.Entry{
		UserID:       primitive.NewObjectID(),
		UserRole:     "parent",
		Operation:    audit.OpCreate,
		ResourceType: audit.ResourceChild,
		ResourceID:   primitive.NewObjectID(),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on append")
	}
	if entries[0].ID.IsZero() {
		t.Error("ID should be assigned on append")
	}
}

func TestStore_QueryFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	other := primitive.NewObjectID()
	childID := primitive.NewObjectID()

	seed := []audit.Entry{
		{UserID: actor, UserRole: "parent", Operation: audit.OpCreate, ResourceType: audit.ResourceChild, ResourceID: childID},
		{UserID: actor, UserRole: "parent", Operation: audit.OpUpdate, ResourceType: audit.ResourceChild, ResourceID: childID},
		{UserID: other, UserRole: "admin", Operation: audit.OpDelete, ResourceType: audit.ResourceUser, ResourceID: primitive.NewObjectID()},
	}
	for _, e := range seed {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	byUser, err := store.Query(ctx, audit.QueryFilter{UserID: &actor})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("user filter: expected 2 entries, got %d", len(byUser))
	}

	byOp, err := store.Query(ctx, audit.QueryFilter{Operation: audit.OpDelete})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byOp) != 1 || byOp[0].ResourceType != audit.ResourceUser {
		t.Errorf("operation filter returned wrong entries: %+v", byOp)
	}

	history, err := store.GetByResource(ctx, audit.ResourceChild, childID, 10)
	if err != nil {
		t.Fatalf("GetByResource failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("resource history: expected 2 entries, got %d", len(history))
	}

	count, err := store.CountByFilter(ctx, audit.QueryFilter{UserID: &actor})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestStore_QueryTimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().Add(-48 * time.Hour)
	if err := store.Append(ctx, audit.Entry{
		UserID: primitive.NewObjectID(), UserRole: "admin",
		Operation: audit.OpCreate, ResourceType: audit.ResourceUser,
		ResourceID: primitive.NewObjectID(), Timestamp: old,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, audit.Entry{
		UserID: primitive.NewObjectID(), UserRole: "admin",
		Operation: audit.OpCreate, ResourceType: audit.ResourceUser,
		ResourceID: primitive.NewObjectID(),
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	since := time.Now().Add(-24 * time.Hour)
	entries, err := store.Query(ctx, audit.QueryFilter{StartTime: &since})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("time filter: expected 1 recent entry, got %d", len(entries))
	}
}
