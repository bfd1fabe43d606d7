// internal/app/features/users/handler.go
package users

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uncip/guardhub/internal/app/policy/userpolicy"
	"github.com/uncip/guardhub/internal/app/store/audit"
	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/auditlog"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"github.com/uncip/guardhub/internal/app/system/inputval"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errUnauthenticated = apperr.E(apperr.Unauthenticated, "sign in required")

// errHidden is returned for accounts the actor may not touch. NotFound
// rather than Forbidden, so responses cannot confirm an account exists.
var errHidden = apperr.E(apperr.NotFound, "user not found")

type Handler struct {
	Users *userstore.Store
	Audit *auditlog.Recorder
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, rec *auditlog.Recorder, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Audit: rec, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Payloads                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type createPayload struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"omitempty,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
	Role        string `json:"role" validate:"required"`
}

type profilePayload struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

type rolePayload struct {
	Role  string   `json:"role" validate:"required"`
	Roles []string `json:"roles" validate:"omitempty,max=5"`
}

type activePayload struct {
	IsActive bool `json:"is_active"`
}

type passwordPayload struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| Handlers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleList serves GET /users. Non-admins see exactly their own account.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Users.List(ctx, userpolicy.List(actor))
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if list == nil {
		list = []models.User{}
	}
	httpjson.Respond(w, http.StatusOK, list)
}

// HandleCreate serves POST /users. Admin only; the one place an account is
// born with a privileged role.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	if !userpolicy.CanCreate(actor) {
		metrics.DenialRecorded("user_create")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "not permitted"))
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

	u := models.User{
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		AuthMethod:  "password",
	}
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
		u.PasswordHash = string(hash)
	} else {
		u.AuthMethod = "google"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Users.Create(ctx, u)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Created(ctx, actor, audit.ResourceUser, created.ID, map[string]string{
		"email": created.Email,
		"role":  created.Role,
	})
	httpjson.Respond(w, http.StatusCreated, created)
}

// HandleGetMe serves GET /users/me.
func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	h.respondUser(w, r, actor.ID)
}

// HandleUpdateMe serves PATCH /users/me. Role fields are not accepted here.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}
	h.applyProfile(w, r, actor, actor.ID)
}

// HandleChangePassword serves PUT /users/me/password. The current password
// must check out, and accounts signing in through an external provider have
// no password to change.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, errUnauthenticated)
		return
	}

	var p passwordPayload
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

	u, err := h.Users.GetByID(ctx, actor.ID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if u.AuthMethod != "password" || u.PasswordHash == "" {
		httpjson.Error(w, h.Log, apperr.E(apperr.Invalid, "account does not use password sign-in"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(p.CurrentPassword)) != nil {
		metrics.DenialRecorded("password_change")
		httpjson.Error(w, h.Log, apperr.E(apperr.Forbidden, "current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.Wrap(apperr.Unavailable, "could not update password", err))
		return
	}
	if err := h.Users.SetPasswordHash(ctx, actor.ID, string(hash)); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceUser, actor.ID, map[string]string{
		"field": "password",
	})
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// HandleGet serves GET /users/{id}.
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
	if !userpolicy.CanView(actor, id) {
		metrics.DenialRecorded("user_view")
		httpjson.Error(w, h.Log, errHidden)
		return
	}
	h.respondUser(w, r, id)
}

// HandleUpdate serves PATCH /users/{id}.
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
	if !userpolicy.CanUpdate(actor, id) {
		metrics.DenialRecorded("user_update")
		httpjson.Error(w, h.Log, errHidden)
		return
	}
	h.applyProfile(w, r, actor, id)
}

// HandleSetRole serves PUT /users/{id}/role. Admin only.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
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
	if !userpolicy.CanChangeRole(actor) {
		metrics.DenialRecorded("user_role_change")
		httpjson.Error(w, h.Log, errHidden)
		return
	}

	var p rolePayload
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

	if err := h.Users.UpdateRole(ctx, id, p.Role, p.Roles); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceUser, id, map[string]string{
		"field": "role",
		"role":  p.Role,
	})
	h.respondUser(w, r, id)
}

// HandleSetActive serves PUT /users/{id}/active. Admin only; the
// soft-disable switch for accounts that should not sign in.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
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
	if !userpolicy.CanChangeRole(actor) {
		metrics.DenialRecorded("user_set_active")
		httpjson.Error(w, h.Log, errHidden)
		return
	}

	var p activePayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.SetActive(ctx, id, p.IsActive); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceUser, id, map[string]string{
		"field":     "is_active",
		"is_active": boolString(p.IsActive),
	})
	h.respondUser(w, r, id)
}

// HandleDelete serves DELETE /users/{id}. Admin only; hard delete.
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
	if !userpolicy.CanDelete(actor) {
		metrics.DenialRecorded("user_delete")
		httpjson.Error(w, h.Log, errHidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Deleted(ctx, actor, audit.ResourceUser, id, nil)
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, u)
}

func (h *Handler) applyProfile(w http.ResponseWriter, r *http.Request, actor authz.Actor, id primitive.ObjectID) {
	var p profilePayload
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

	upd := userstore.ProfileUpdate{DisplayName: p.DisplayName, Email: p.Email}
	if err := h.Users.UpdateProfile(ctx, id, upd); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Audit.Updated(ctx, actor, audit.ResourceUser, id, map[string]string{
		"field": "profile",
	})
	h.respondUser(w, r, id)
}

func urlID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Field("id", "must be a valid object id")
	}
	return id, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
