package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userNameKey  = "user_name"
	userEmailKey = "user_email"
	userRoleKey  = "user_role"
	userRolesKey = "user_roles"
	schoolIDKey  = "school_id"
)

// SessionUser is what we cache in the session & inject into r.Context().
// It is raw session data: role fields here are untrusted strings until the
// authz package resolves them into an Actor.
type SessionUser struct {
	ID       string
	Name     string
	Email    string
	Role     string
	Roles    []string
	SchoolID string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the session user and a "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects a session user into the request context, bypassing
// session middleware. Intended for handler tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie session store and the middleware that
// resolves the caller on every request. It is constructed once in
// bootstrap.BuildHandler and passed down explicitly; there is no package
// global.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	tokens *TokenIssuer
	log    *zap.Logger
}

// NewSessionManager builds a SessionManager with the given signing key,
// cookie name, and domain. The secure flag controls Secure cookies and the
// SameSite mode: production uses Secure + SameSite=None so the separately
// hosted UI can send cookies cross-site; dev over http uses Lax.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetTokenIssuer enables bearer-token authentication alongside cookie
// sessions. When set, LoadSessionUser also accepts Authorization: Bearer.
func (sm *SessionManager) SetTokenIssuer(ti *TokenIssuer) {
	sm.tokens = ti
}

// SignIn writes the user into the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[userEmailKey] = u.Email
	sess.Values[userRoleKey] = u.Role
	sess.Values[userRolesKey] = strings.Join(u.Roles, ",")
	sess.Values[schoolIDKey] = u.SchoolID
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the caller into context if they are authenticated,
// from the session cookie or, when a token issuer is configured, from an
// Authorization: Bearer token. The cookie wins if both are present.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.store.Get(r, sm.name)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := &SessionUser{
				ID:       getString(sess, userIDKey),
				Name:     getString(sess, userNameKey),
				Email:    getString(sess, userEmailKey),
				Role:     getString(sess, userRoleKey),
				SchoolID: getString(sess, schoolIDKey),
			}
			if joined := getString(sess, userRolesKey); joined != "" {
				u.Roles = strings.Split(joined, ",")
			}
			next.ServeHTTP(w, withUser(r, u))
			return
		}

		if sm.tokens != nil {
			if tok := bearerToken(r); tok != "" {
				u, err := sm.tokens.Parse(tok)
				if err == nil {
					next.ServeHTTP(w, withUser(r, u))
					return
				}
				sm.log.Debug("bearer token rejected", zap.Error(err))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by
// LoadSessionUser). API callers get a plain 401 JSON body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
	})
}

// RequireRole ensures the caller has one of the allowed roles. Role
// comparison is lowercase-normalized; a caller whose primary role or role
// list matches any allowed role passes. This is the coarse route-level
// gate only: handlers still call through the policy packages for
// per-resource decisions.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; has {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range u.Roles {
				if _, has := set[strings.ToLower(role)]; has {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden", "access denied")
		})
	}
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// writeJSONError is a minimal local error writer so this package does not
// depend on the handler-layer JSON helpers.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
