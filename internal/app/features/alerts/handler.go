// internal/app/features/alerts/handler.go
package alerts

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uncip/guardhub/internal/app/policy/alertpolicy"
	"github.com/uncip/guardhub/internal/app/policy/childpolicy"
	alertstore "github.com/uncip/guardhub/internal/app/store/alerts"
	"github.com/uncip/guardhub/internal/app/store/audit"
	childstore "github.com/uncip/guardhub/internal/app/store/children"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/auditlog"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/htmlsanitize"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"github.com/uncip/guardhub/internal/app/system/inputval"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/ratelimit"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errUnauthenticated = apperr.E(apperr.Unauthenticated, "sign in required")

type Handler struct {
	Alerts      *alertstore.Store
	Children    *childstore.Store
	Audit       *auditlog.Recorder
	AlertLimits *ratelimit.AlertLimiter
	Log         *zap.Logger
}

func NewHandler(
	alerts *alertstore.Store,
	children *childstore.Store,
	rec *auditlog.Recorder,
	limits *ratelimit.AlertLimiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Alerts:      alerts,
		Children:    children,
		Audit:       rec,
		AlertLimits: limits,
		Log:         logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Payloads                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type createPayload struct {
	ChildID          string `json:"child_id" validate:"required,objectid"`
	AlertType        string `json:"alert_type" validate:"required,oneof=missing medical danger other"`
	Description      string `json:"description" validate:"required,min=1,max=4000"`
	LastSeenLocation string `json:"last_seen_location" validate:"omitempty,max=500"`
	LastSeenWearing  string `json:"last_seen_wearing" validate:"omitempty,max=500"`
	ContactInfo      string `json:"contact_info" validate:"required,min=1,max=500"`
}

type updatePayload struct {
	Description      string `json:"description" validate:"required,min=1,max=4000"`
	LastSeenLocation string `json:"last_seen_location" validate:"omitempty,max=500"`
	LastSeenWearing  string `json:"last_seen_wearing" validate:"omitempty,max=500"`
	ContactInfo      string `json:"contact_info" validate:"required,min=1,max=500"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| Handlers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList serves GET /alerts?status=active. Alert visibility joins
// through child visibility: parents and schools first resolve their
// visible child ids, and an empty set short-circuits without querying
// the alert collection.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && status != models.AlertStatusActive && !models.TerminalAlertStatus(status) {
		httpjson.Error(w, h.Log, apperr.Field("status", "unknown alert status"))
		return
	}

	scope := alertpolicy.List(actor)
	if !scope.CanList {
		httpjson.Respond(w, http.StatusOK, []models.Alert{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		list []models.Alert
		err  error
	)
	if scope.All {
		list, err = h.Alerts.ListAll(ctx, status)
	} else {
		var childIDs []primitive.ObjectID
		childIDs, err = h.Children.ListIDs(ctx, scope.Children)
		if err == nil {
			list, err = h.Alerts.ListByChildren(ctx, childIDs, status)
		}
	}
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.Alert{}
	}
	httpjson.Respond(w, http.StatusOK, list)
}

// HandleCreate serves POST /alerts. The child is resolved before the
// duplicate-active check so a bad child id fails as not-found, and an
// alert on an invisible child reads identically.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}

	var p createPayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := inputval.Struct(p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	childID, err := primitive.ObjectIDFromHex(p.ChildID)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.Field("child_id", "must be a valid object id"))
		return
	}

	if h.AlertLimits != nil && !h.AlertLimits.Check(actor.ID.Hex()) {
		metrics.DenialRecorded("alert_rate_limited")
		writeRateLimited(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	child, err := h.Children.Get(ctx, childID, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !alertpolicy.CanCreate(actor, child) {
		metrics.DenialRecorded("alert_create")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	created, err := h.Alerts.Create(ctx, models.Alert{
		ChildID:          childID,
		AlertType:        p.AlertType,
		Description:      htmlsanitize.Text(p.Description),
		LastSeenLocation: htmlsanitize.Text(p.LastSeenLocation),
		LastSeenWearing:  htmlsanitize.Text(p.LastSeenWearing),
		ContactInfo:      htmlsanitize.Text(p.ContactInfo),
		CreatedBy:        actor.ID,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Log.Info("alert raised",
		zap.String("alert_id", created.ID.Hex()),
		zap.String("child_id", childID.Hex()),
		zap.String("alert_type", created.AlertType))
	h.Audit.Created(ctx, actor, audit.ResourceAlert, created.ID, map[string]string{
		"child_id":   childID.Hex(),
		"alert_type": created.AlertType,
	})
	httpjson.Respond(w, http.StatusCreated, created)
}

// HandleGet serves GET /alerts/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	alert, _, err := h.visibleAlert(ctx, actor, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, alert)
}

// HandleUpdate serves PUT /alerts/{id}, changing descriptive fields only;
// status moves through the resolve/cancel endpoints.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var p updatePayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := inputval.Struct(p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	alert, _, err := h.visibleAlert(ctx, actor, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !alertpolicy.CanUpdate(actor, alert) {
		metrics.DenialRecorded("alert_update")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	upd := alertstore.Update{
		Description:      htmlsanitize.Text(p.Description),
		LastSeenLocation: htmlsanitize.Text(p.LastSeenLocation),
		LastSeenWearing:  htmlsanitize.Text(p.LastSeenWearing),
		ContactInfo:      htmlsanitize.Text(p.ContactInfo),
	}
	if err := h.Alerts.Apply(ctx, id, upd); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceAlert, id, nil)

	updated, err := h.Alerts.Get(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, updated)
}

// HandleResolve serves POST /alerts/{id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, models.AlertStatusResolved)
}

// HandleCancel serves POST /alerts/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, models.AlertStatusCancelled)
}

// HandleMarkFalse serves POST /alerts/{id}/false, for alerts that turned
// out to be false alarms.
func (h *Handler) HandleMarkFalse(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, models.AlertStatusFalse)
}

// HandleDelete serves DELETE /alerts/{id}. Admin only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !alertpolicy.CanDelete(actor) {
		metrics.DenialRecorded("alert_delete")
		httpjson.Error(w, h.Log, apperr.E(apperr.NotFound, "alert not found"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Alerts.Delete(ctx, id); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Deleted(ctx, actor, audit.ResourceAlert, id, nil)
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// close transitions an active alert to the given terminal status.
func (h *Handler) close(w http.ResponseWriter, r *http.Request, status string) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	alert, _, err := h.visibleAlert(ctx, actor, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !alertpolicy.CanUpdate(actor, alert) {
		metrics.DenialRecorded("alert_close")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	if err := h.Alerts.Close(ctx, id, status, actor.ID); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Log.Info("alert closed",
		zap.String("alert_id", id.Hex()),
		zap.String("status", status))
	h.Audit.Updated(ctx, actor, audit.ResourceAlert, id, map[string]string{
		"status": status,
	})

	updated, err := h.Alerts.Get(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, updated)
}

// visibleAlert loads the alert and its child and applies the view policy.
// An alert the actor may not see is indistinguishable from a missing one.
func (h *Handler) visibleAlert(ctx context.Context, actor authz.Actor, id primitive.ObjectID) (*models.Alert, *models.Child, error) {
	alert, err := h.Alerts.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	child, err := h.Children.GetAny(ctx, alert.ChildID)
	if err != nil && !errors.Is(err, childstore.ErrNotFound) {
		return nil, nil, err
	}

	if !alertpolicy.CanView(actor, alert, child) {
		metrics.DenialRecorded("alert_view")
		return nil, nil, alertstore.ErrNotFound
	}
	return alert, child, nil
}

func urlID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Field("id", "must be a valid object id")
	}
	return id, nil
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "600")
	httpjson.Respond(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]string{
			"code":    "rate_limited",
			"message": "too many alerts raised, try again later",
		},
	})
}
