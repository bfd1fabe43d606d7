// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/apperr"
	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"github.com/uncip/guardhub/internal/app/system/inputval"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/normalize"
	"github.com/uncip/guardhub/internal/app/system/ratelimit"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// errBadCredentials is the single rejection for every credential failure so
// responses cannot distinguish an unknown email from a wrong password.
var errBadCredentials = apperr.E(apperr.Unauthenticated, "invalid email or password")

var errAccountDisabled = apperr.E(apperr.Forbidden, "account is disabled")

type Handler struct {
	Users       *userstore.Store
	SessionMgr  *auth.SessionManager
	Tokens      *auth.TokenIssuer
	LoginLimits *ratelimit.LoginLimiter
	Log         *zap.Logger
}

func NewHandler(
	users *userstore.Store,
	sessionMgr *auth.SessionManager,
	tokens *auth.TokenIssuer,
	limits *ratelimit.LoginLimiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:       users,
		SessionMgr:  sessionMgr,
		Tokens:      tokens,
		LoginLimits: limits,
		Log:         logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Payloads                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type registerPayload struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=100"`
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| Handlers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRegister serves POST /auth/register. Self-registration always
// produces a parent account; privileged roles are assigned by admins through
// the users API.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var p registerPayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := inputval.Struct(p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Users.Create(ctx, models.User{
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		PasswordHash: string(hash),
		AuthMethod:   "password",
		Role:         string(authz.RoleParent),
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Log.Info("user registered",
		zap.String("user_id", created.ID.Hex()),
		zap.String("email", created.Email))
	httpjson.Respond(w, http.StatusCreated, created)
}

// HandleLogin serves POST /auth/login. On success it sets the session cookie
// and returns a bearer token, so both browser and API clients can use it.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var p loginPayload
	if err := httpjson.Decode(w, r, &p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := inputval.Struct(p); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	email := normalize.Email(p.Email)
	if h.LoginLimits != nil {
		if ok, reason := h.LoginLimits.Check(r, email); !ok {
			h.Log.Warn("login rate limited",
				zap.String("reason", reason),
				zap.String("ip", ratelimit.ClientIP(r)))
			metrics.DenialRecorded("rate_limited")
			writeRateLimited(w)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong
			// passwords.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(p.Password))
			httpjson.Error(w, h.Log, errBadCredentials)
			return
		}
		httpjson.Error(w, h.Log, err)
		return
	}

	if u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(p.Password)) != nil {
		metrics.DenialRecorded("bad_credentials")
		httpjson.Error(w, h.Log, errBadCredentials)
		return
	}
	if !u.IsActive {
		metrics.DenialRecorded("account_disabled")
		httpjson.Error(w, h.Log, errAccountDisabled)
		return
	}

	su := sessionUserFrom(u)
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	// Bearer tokens are optional; cookie-only deployments leave Tokens nil.
	var token string
	if h.Tokens != nil {
		token, err = h.Tokens.Issue(su)
		if err != nil {
			httpjson.Error(w, h.Log, err)
			return
		}
	}
	if h.LoginLimits != nil {
		h.LoginLimits.ResetEmail(email)
	}

	h.Log.Info("user signed in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", u.Role))
	httpjson.Respond(w, http.StatusOK, sessionResponse{Token: token, User: *u})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func sessionUserFrom(u *models.User) *auth.SessionUser {
	su := &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.DisplayName,
		Email: u.Email,
		Role:  u.Role,
		Roles: u.Roles,
	}
	if u.SchoolID != nil {
		su.SchoolID = u.SchoolID.Hex()
	}
	return su
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	httpjson.Respond(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]string{
			"code":    "rate_limited",
			"message": "too many login attempts, try again later",
		},
	})
}
