// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/httpjson"
	"go.uber.org/zap"
)

type Handler struct {
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{SessionMgr: sessionMgr, Log: logger}
}

// HandleLogout serves POST /auth/logout. Signing out an unauthenticated
// caller is a no-op success; there is nothing to leak either way.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Log.Info("user signed out", zap.String("user_id", u.ID))
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Respond(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
