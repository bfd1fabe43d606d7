package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mutating operations recorded in the audit trail.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Resource types recorded in the audit trail.
const (
	ResourceUser         = "user"
	ResourceChild        = "child"
	ResourceAlert        = "alert"
	ResourceSafeResource = "safe_resource"
)

// Entry is one mutation in the audit trail.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	// Who performed the mutation.
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	UserRole string             `bson:"user_role" json:"user_role"`

	// What was done to what.
	Operation    string             `bson:"operation" json:"operation"`
	ResourceType string             `bson:"resource_type" json:"resource_type"`
	ResourceID   primitive.ObjectID `bson:"resource_id" json:"resource_id"`

	// Additional context (varies by operation).
	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for browsing the audit trail.
type QueryFilter struct {
	UserID       *primitive.ObjectID
	ResourceType string
	ResourceID   *primitive.ObjectID
	Operation    string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int64
	Offset       int64
}

// Store manages audit trail records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_log")}
}

// EnsureIndexes creates the indexes the browse queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "resource_type", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Append records an audit entry. A zero timestamp is stamped with now.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Query retrieves audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	query := buildQuery(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByFilter returns the count of entries matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetByResource retrieves the audit history of a single resource.
func (s *Store) GetByResource(ctx context.Context, resourceType string, resourceID primitive.ObjectID, limit int64) ([]Entry, error) {
	return s.Query(ctx, QueryFilter{
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		Limit:        limit,
	})
}

// GetRecent retrieves the most recent audit entries.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Entry, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}

	if filter.UserID != nil {
		query["user_id"] = filter.UserID
	}
	if filter.ResourceType != "" {
		query["resource_type"] = filter.ResourceType
	}
	if filter.ResourceID != nil {
		query["resource_id"] = filter.ResourceID
	}
	if filter.Operation != "" {
		query["operation"] = filter.Operation
	}

	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}

	return query
}
