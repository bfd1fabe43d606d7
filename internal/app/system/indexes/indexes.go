// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureChildren(ctx, db); err != nil {
		problems = append(problems, "children: "+err.Error())
	}
	if err := ensureAlerts(ctx, db); err != nil {
		problems = append(problems, "alerts: "+err.Error())
	}
	if err := ensureAuditLog(ctx, db); err != nil {
		problems = append(problems, "audit_log: "+err.Error())
	}
	if err := ensureSafeResources(ctx, db); err != nil {
		problems = append(problems, "safe_resources: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// 1) Load existing indexes
		existing := map[string]existingIndex{} // sig -> index
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			defer cur.Close(ctx)
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
		}

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// If the name differs, drop & recreate with the desired name.
				if desiredName != "" && ex.Name != desiredName {
					zap.L().Info("renaming index to align with desired name",
						zap.String("collection", coll.Name()),
						zap.String("from", ex.Name),
						zap.String("to", desiredName),
						zap.String("keys", desiredSig))

					if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), desiredName, err))
						continue
					}
					if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename create failed: %v", coll.Name(), desiredName, err))
						continue
					}
					zap.L().Info("index renamed",
						zap.String("collection", coll.Name()),
						zap.String("name", desiredName),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}

				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Bool("unique", ex.Unique != nil && *ex.Unique),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
					errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
				} else {
					errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				}
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// 2) No existing index with the same keys: create it.
		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isOptionsConflictErr(err) {
				// An index with these keys exists under different options/name;
				// reconcile by dropping the conflict and retrying once.
				if match := findBySig(ctx, coll, desiredSig); match != nil {
					if sameBoolPtr(desiredUnique, match.Unique) {
						zap.L().Info("reusing existing index (post-conflict)",
							zap.String("collection", coll.Name()),
							zap.String("name", match.Name),
							zap.String("keys", desiredSig),
							zap.String("took", time.Since(start).String()))
						continue
					}
					if _, dropErr := coll.Indexes().DropOne(ctx, match.Name); dropErr != nil {
						zap.L().Warn("failed to drop conflicting index",
							zap.String("collection", coll.Name()),
							zap.String("name", match.Name),
							zap.Error(dropErr))
					}
					if _, retryErr := coll.Indexes().CreateOne(ctx, m); retryErr != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, retryErr))
						continue
					}
					zap.L().Info("index dropped and recreated (post-conflict)",
						zap.String("collection", coll.Name()),
						zap.String("name", desiredName),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}
			}

			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}

		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("created_name", created),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func findBySig(ctx context.Context, coll *mongo.Collection, sig string) *existingIndex {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if keySig(idx.Key) == sig {
			return &idx
		}
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email must be unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Admin user lists: filter by role, sort by name, stable tiebreak.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "display_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_nameci_id"),
		},
		// School accounts looked up by their school binding.
		{
			Keys:    bson.D{{Key: "school_id", Value: 1}},
			Options: options.Index().SetName("idx_users_school"),
		},
	})
}

func ensureChildren(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("children")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Parent scope: guardianship membership, sorted by name.
		{
			Keys: bson.D{
				{Key: "guardians", Value: 1},
				{Key: "full_name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_children_guardians_nameci"),
		},
		// School scope: enrollment, sorted by name.
		{
			Keys: bson.D{
				{Key: "school_id", Value: 1},
				{Key: "full_name_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_children_school_nameci"),
		},
		// Global lists sort by name.
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_children_nameci_id"),
		},
	})
}

func ensureAlerts(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("alerts")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Duplicate-active check and per-child alert history.
		{
			Keys: bson.D{
				{Key: "child_id", Value: 1},
				{Key: "alert_type", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_alerts_child_type_status"),
		},
		// Backstop for the check-then-insert in alert creation: at most one
		// active alert per (child, type) even under concurrent creates.
		{
			Keys: bson.D{
				{Key: "child_id", Value: 1},
				{Key: "alert_type", Value: 1},
			},
			Options: options.Index().
				SetName("idx_alerts_active_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "status", Value: "active"},
				}),
		},
		// Scoped lists: alerts for a set of children, newest first.
		{
			Keys: bson.D{
				{Key: "child_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_alerts_child_created"),
		},
		// Global lists: filter by status, newest first.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_alerts_status_created"),
		},
	})
}

func ensureAuditLog(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_log")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Site-wide browse, newest first.
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		// Per-user history.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_user_ts"),
		},
		// Per-resource history.
		{
			Keys: bson.D{
				{Key: "resource_type", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_resource_ts"),
		},
	})
}

func ensureSafeResources(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("safe_resources")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Listing: active filter, category, title sort.
		{
			Keys: bson.D{
				{Key: "is_active", Value: 1},
				{Key: "category", Value: 1},
				{Key: "title_ci", Value: 1},
			},
			Options: options.Index().SetName("idx_saferes_active_cat_titleci"),
		},
	})
}
