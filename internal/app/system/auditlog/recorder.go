// internal/app/system/auditlog/recorder.go
package auditlog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/uncip/guardhub/internal/app/store/audit"
	"github.com/uncip/guardhub/internal/app/system/authz"
)

// Config holds audit recording configuration.
// Mode values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only),
// "off" (disabled).
type Config struct {
	Mode string
}

// Recorder writes the audit trail for mutating operations. It records to
// MongoDB (via audit.Store) and structured logs (via zap) depending on Mode.
//
// A nil Recorder is a no-op, and recording failures never fail the mutation
// they describe: they are logged and swallowed.
type Recorder struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Recorder.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Recorder {
	return &Recorder{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// Record writes one audit entry for a mutation performed by the given actor.
func (r *Recorder) Record(ctx context.Context, actor authz.Actor, operation, resourceType string, resourceID primitive.ObjectID, details map[string]string) {
	if r == nil {
		return
	}

	mode := r.config.Mode
	if mode == "" {
		mode = "all"
	}
	if mode == "off" {
		return
	}

	entry := audit.Entry{
		UserID:       actor.ID,
		UserRole:     string(actor.PrimaryRole),
		Operation:    operation,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}

	if mode == "all" || mode == "log" {
		r.logToZap(entry)
	}
	if mode == "all" || mode == "db" {
		if err := r.store.Append(ctx, entry); err != nil {
			r.zapLog.Error("failed to store audit entry",
				zap.Error(err),
				zap.String("operation", entry.Operation),
				zap.String("resource_type", entry.ResourceType),
			)
		}
	}
}

// Created records a create of the given resource.
func (r *Recorder) Created(ctx context.Context, actor authz.Actor, resourceType string, resourceID primitive.ObjectID, details map[string]string) {
	r.Record(ctx, actor, audit.OpCreate, resourceType, resourceID, details)
}

// Updated records an update of the given resource.
func (r *Recorder) Updated(ctx context.Context, actor authz.Actor, resourceType string, resourceID primitive.ObjectID, details map[string]string) {
	r.Record(ctx, actor, audit.OpUpdate, resourceType, resourceID, details)
}

// Deleted records a delete of the given resource.
func (r *Recorder) Deleted(ctx context.Context, actor authz.Actor, resourceType string, resourceID primitive.ObjectID, details map[string]string) {
	r.Record(ctx, actor, audit.OpDelete, resourceType, resourceID, details)
}

func (r *Recorder) logToZap(entry audit.Entry) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("operation", entry.Operation),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID.Hex()),
		zap.String("user_id", entry.UserID.Hex()),
		zap.String("user_role", entry.UserRole),
	}
	for k, v := range entry.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	r.zapLog.Info("audit entry", fields...)
}
