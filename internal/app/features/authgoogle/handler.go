// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/uncip/guardhub/internal/app/store/oauthstate"
	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles Google OAuth authentication. A first successful sign-in
// provisions a parent account; privileged roles are never granted here.
type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	StateStore *oauthstate.Store
	Log        *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://guardhub.example/auth/google/callback"
	UIBaseURL    string // where the browser lands after the round trip
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	users *userstore.Store,
	sessionMgr *auth.SessionManager,
	stateStore *oauthstate.Store,
	clientID, clientSecret, baseURL, uiBaseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:        users,
		SessionMgr:   sessionMgr,
		StateStore:   stateStore,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		UIBaseURL:    strings.TrimRight(uiBaseURL, "/"),
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectWithError(w, r, "google_not_configured")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectWithError(w, r, "internal")
		return
	}

	returnURL := r.URL.Query().Get("return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		h.redirectWithError(w, r, "internal")
		return
	}

	dest := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow", zap.String("return_url", returnURL))
	http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
| Exchanges the code for tokens, fetches the Google profile, finds or          |
| provisions the user, and creates the session.                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.redirectWithError(w, r, "google_denied")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		h.redirectWithError(w, r, "invalid_state")
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.redirectWithError(w, r, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectWithError(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectWithError(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectWithError(w, r, "token_exchange")
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectWithError(w, r, "user_info")
		return
	}
	if !googleUser.EmailVerified {
		h.Log.Warn("Google account email not verified",
			zap.String("email", googleUser.Email))
		h.redirectWithError(w, r, "email_unverified")
		return
	}

	u, err := h.findOrProvision(ctxTimeout, googleUser)
	if err != nil {
		if errors.Is(err, errUserDisabled) {
			h.redirectWithError(w, r, "account_disabled")
			return
		}
		h.Log.Error("failed to resolve Google user", zap.Error(err))
		h.redirectWithError(w, r, "internal")
		return
	}

	h.createSessionAndRedirect(w, r, u, returnURL)
}

/*─────────────────────────────────────────────────────────────────────────────*
| User lookup and provisioning                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

var errUserDisabled = errors.New("user disabled")

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// findOrProvision looks up the user by email, creating a parent account on
// first sign-in. An existing account keeps whatever role an admin assigned.
func (h *Handler) findOrProvision(ctx context.Context, gu *googleUserInfo) (*models.User, error) {
	u, err := h.Users.GetByEmail(ctx, gu.Email)
	if err == nil {
		if !u.IsActive {
			return nil, errUserDisabled
		}
		return u, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return nil, err
	}

	name := gu.Name
	if name == "" {
		name = gu.Email
	}
	created, err := h.Users.Create(ctx, models.User{
		Email:       gu.Email,
		DisplayName: name,
		AuthMethod:  "google",
		Role:        string(authz.RoleParent),
	})
	if err != nil {
		// A concurrent first sign-in may have created the account between
		// the lookup and the insert; read it back.
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return h.Users.GetByEmail(ctx, gu.Email)
		}
		return nil, err
	}

	h.Log.Info("provisioned user via Google OAuth",
		zap.String("user_id", created.ID.Hex()),
		zap.String("email", created.Email))
	return &created, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Session creation                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) createSessionAndRedirect(w http.ResponseWriter, r *http.Request, u *models.User, returnURL string) {
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

	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		h.redirectWithError(w, r, "session")
		return
	}

	h.Log.Info("user signed in via Google OAuth",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", u.Role))

	http.Redirect(w, r, h.UIBaseURL+safeReturn(returnURL), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// safeReturn accepts only same-site relative paths; anything else falls back
// to the root so the callback cannot be used as an open redirect.
func safeReturn(returnURL string) string {
	if returnURL == "" || !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") {
		return "/"
	}
	return returnURL
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	dest := h.UIBaseURL + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}
