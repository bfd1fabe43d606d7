// internal/app/features/saferesources/handler.go
package saferesources

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uncip/guardhub/internal/app/store/audit"
	resourcestore "github.com/uncip/guardhub/internal/app/store/saferesources"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/auditlog"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/htmlsanitize"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"github.com/uncip/guardhub/internal/app/system/inputval"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errUnauthenticated = apperr.E(apperr.Unauthenticated, "sign in required")

// Handler serves the safety-resource library. Every signed-in role reads
// the active entries; admins manage the catalog and see inactive ones.
type Handler struct {
	Resources *resourcestore.Store
	Audit     *auditlog.Recorder
	Log       *zap.Logger
}

func NewHandler(store *resourcestore.Store, rec *auditlog.Recorder, logger *zap.Logger) *Handler {
	return &Handler{Resources: store, Audit: rec, Log: logger}
}

type resourcePayload struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	Category string `json:"category" validate:"required,oneof=guide hotline education other"`
	Body     string `json:"body" validate:"required,min=1"`
	LinkURL  string `json:"link_url" validate:"omitempty,max=500"`
	// Omitted means active.
	IsActive *bool `json:"is_active"`
}

func (p resourcePayload) active() bool {
	return p.IsActive == nil || *p.IsActive
}

func (p resourcePayload) validate() error {
	if err := inputval.Struct(p); err != nil {
		return err
	}
	if p.LinkURL != "" && !inputval.IsValidHTTPURL(p.LinkURL) {
		return apperr.Field("link_url", "must be an http or https URL")
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Handlers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList serves GET /resources?category=. The directory is public;
// only admins see inactive entries.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, signedIn := authz.ActorCtx(r)
	activeOnly := !signedIn || !actor.IsAdmin()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Resources.List(ctx, r.URL.Query().Get("category"), activeOnly)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.SafeResource{}
	}
	httpjson.Respond(w, http.StatusOK, list)
}

// HandleGet serves GET /resources/{id}. The directory is public; an
// inactive entry reads as missing for everyone but admins.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, signedIn := authz.ActorCtx(r)
	activeOnly := !signedIn || !actor.IsAdmin()

	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Resources.Get(ctx, id, activeOnly)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, res)
}

// HandleCreate serves POST /resources. Admin only.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	if !actor.IsAdmin() {
		metrics.DenialRecorded("resource_create")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	var p resourcePayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := p.validate(); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Resources.Create(ctx, models.SafeResource{
		Title:     p.Title,
		Category:  p.Category,
		Body:      htmlsanitize.Body(p.Body),
		LinkURL:   p.LinkURL,
		IsActive:  p.active(),
		CreatedBy: actor.ID,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Created(ctx, actor, audit.ResourceSafeResource, created.ID, map[string]string{
		"title": created.Title,
	})
	httpjson.Respond(w, http.StatusCreated, created)
}

// HandleUpdate serves PUT /resources/{id}. Admin only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	if !actor.IsAdmin() {
		metrics.DenialRecorded("resource_update")
		httpjson.Error(w, h.Log, apperr.E(apperr.NotFound, "resource not found"))
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var p resourcePayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := p.validate(); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	upd := resourcestore.Update{
		Title:    p.Title,
		Category: p.Category,
		Body:     htmlsanitize.Body(p.Body),
		LinkURL:  p.LinkURL,
		IsActive: p.active(),
	}
	if err := h.Resources.Apply(ctx, id, upd); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceSafeResource, id, nil)

	updated, err := h.Resources.Get(ctx, id, false)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, updated)
}

// HandleDelete serves DELETE /resources/{id}. Admin only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	if !actor.IsAdmin() {
		metrics.DenialRecorded("resource_delete")
		httpjson.Error(w, h.Log, apperr.E(apperr.NotFound, "resource not found"))
		return
	}
	id, err := urlID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Resources.Delete(ctx, id); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Deleted(ctx, actor, audit.ResourceSafeResource, id, nil)
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func urlID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Field("id", "must be a valid object id")
	}
	return id, nil
}
