// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/uncip/guardhub/internal/app/store/audit"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Handler serves the admin audit-trail browser. The application itself
// never reads audit entries; this surface exists for oversight.
type Handler struct {
	Audit *audit.Store
	Log   *zap.Logger
}

func NewHandler(store *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{Audit: store, Log: logger}
}

type listResponse struct {
	Entries []audit.Entry `json:"entries"`
	Total   int64         `json:"total"`
	Limit   int64         `json:"limit"`
	Offset  int64         `json:"offset"`
}

// HandleList serves GET /audit. Admin only. Supports filtering by actor,
// resource, operation, and time range, with limit/offset paging.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.E(apperr.Unauthenticated, "sign in required"))
		return
	}
	if !actor.IsAdmin() {
		metrics.DenialRecorded("audit_browse")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	entries, err := h.Audit.Query(ctx, filter)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	httpjson.Respond(w, http.StatusOK, listResponse{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		ResourceType: q.Get("resource_type"),
		Operation:    q.Get("operation"),
		Limit:        defaultLimit,
	}

	if v := q.Get("user_id"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return filter, apperr.Field("user_id", "must be a valid object id")
		}
		filter.UserID = &id
	}
	if v := q.Get("resource_id"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return filter, apperr.Field("resource_id", "must be a valid object id")
		}
		filter.ResourceID = &id
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperr.Field("since", "must be an RFC 3339 timestamp")
		}
		filter.StartTime = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperr.Field("until", "must be an RFC 3339 timestamp")
		}
		filter.EndTime = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return filter, apperr.Field("limit", "must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return filter, apperr.Field("offset", "must be a non-negative integer")
		}
		filter.Offset = n
	}

	return filter, nil
}
