// internal/app/features/children/handler.go
package children

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/uncip/guardhub/internal/app/policy/childpolicy"
	"github.com/uncip/guardhub/internal/app/store/audit"
	childstore "github.com/uncip/guardhub/internal/app/store/children"
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

type Handler struct {
	Children *childstore.Store
	Audit    *auditlog.Recorder
	Log      *zap.Logger
}

func NewHandler(children *childstore.Store, rec *auditlog.Recorder, logger *zap.Logger) *Handler {
	return &Handler{Children: children, Audit: rec, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Payloads                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type childPayload struct {
	FirstName   string   `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string   `json:"last_name" validate:"required,min=1,max=100"`
	DateOfBirth string   `json:"date_of_birth" validate:"required"`
	Gender      string   `json:"gender" validate:"required,oneof=female male other"`
	Guardians   []string `json:"guardians" validate:"omitempty,dive,objectid"`
	SchoolID    string   `json:"school_id" validate:"omitempty,objectid"`
	MedicalInfo string   `json:"medical_info" validate:"omitempty,max=4000"`
}

// parse validates the payload and resolves its string ids. The date of
// birth must be a calendar date, not in the future.
func (p childPayload) parse() (dob time.Time, guardians []primitive.ObjectID, schoolID *primitive.ObjectID, err error) {
	dob, err = time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return dob, nil, nil, apperr.Field("date_of_birth", "must be a date in YYYY-MM-DD form")
	}
	if dob.After(time.Now()) {
		return dob, nil, nil, apperr.Field("date_of_birth", "must not be in the future")
	}
	for _, g := range p.Guardians {
		id, err := primitive.ObjectIDFromHex(g)
		if err != nil {
			return dob, nil, nil, apperr.Field("guardians", "must be valid object ids")
		}
		guardians = append(guardians, id)
	}
	if p.SchoolID != "" {
		id, err := primitive.ObjectIDFromHex(p.SchoolID)
		if err != nil {
			return dob, nil, nil, apperr.Field("school_id", "must be a valid object id")
		}
		schoolID = &id
	}
	return dob, guardians, schoolID, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Handlers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList serves GET /children, bounded by the actor's visibility scope.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Children.List(ctx, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.Child{}
	}
	httpjson.Respond(w, http.StatusOK, list)
}

// HandleCreate serves POST /children. A creating parent is always recorded
// as a guardian, whatever the payload says.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	if !childpolicy.CanCreate(actor) {
		metrics.DenialRecorded("child_create")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	p, err := decodeChild(w, r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	dob, guardians, schoolID, err := p.parse()
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Children.Create(ctx, models.Child{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: dob,
		Gender:      p.Gender,
		Guardians:   childpolicy.NormalizeGuardians(actor, guardians),
		SchoolID:    schoolID,
		MedicalInfo: htmlsanitize.Text(p.MedicalInfo),
		IsActive:    true,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Created(ctx, actor, audit.ResourceChild, created.ID, map[string]string{
		"first_name": created.FirstName,
		"last_name":  created.LastName,
	})
	httpjson.Respond(w, http.StatusCreated, created)
}

// HandleGet serves GET /children/{id}. An out-of-scope child reads exactly
// like a missing one.
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

	c, err := h.Children.Get(ctx, id, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, c)
}

// HandleUpdate serves PUT /children/{id}.
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Children.Get(ctx, id, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !childpolicy.CanManage(actor, c) {
		metrics.DenialRecorded("child_update")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	p, err := decodeChild(w, r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	dob, guardians, schoolID, err := p.parse()
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	upd := childstore.Update{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: dob,
		Gender:      p.Gender,
		Guardians:   childpolicy.NormalizeGuardians(actor, guardians),
		SchoolID:    schoolID,
		MedicalInfo: htmlsanitize.Text(p.MedicalInfo),
	}
	if err := h.Children.Apply(ctx, id, upd); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceChild, id, nil)

	updated, err := h.Children.Get(ctx, id, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, updated)
}

// HandleDelete serves DELETE /children/{id}.
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Children.Get(ctx, id, childpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !childpolicy.CanManage(actor, c) {
		metrics.DenialRecorded("child_delete")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
		return
	}

	if err := h.Children.Delete(ctx, id); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Deleted(ctx, actor, audit.ResourceChild, id, nil)
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func decodeChild(w http.ResponseWriter, r *http.Request) (childPayload, error) {
	var p childPayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		return p, err
	}
	if err := inputval.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

func urlID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Field("id", "must be a valid object id")
	}
	return id, nil
}
