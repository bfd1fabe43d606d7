// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	alertsfeature "github.com/uncip/guardhub/internal/app/features/alerts"
	auditfeature "github.com/uncip/guardhub/internal/app/features/auditlog"
	authgooglefeature "github.com/uncip/guardhub/internal/app/features/authgoogle"
	childrenfeature "github.com/uncip/guardhub/internal/app/features/children"
	healthfeature "github.com/uncip/guardhub/internal/app/features/health"
	loginfeature "github.com/uncip/guardhub/internal/app/features/login"
	logoutfeature "github.com/uncip/guardhub/internal/app/features/logout"
	resourcesfeature "github.com/uncip/guardhub/internal/app/features/saferesources"
	usersfeature "github.com/uncip/guardhub/internal/app/features/users"
	alertstore "github.com/uncip/guardhub/internal/app/store/alerts"
	"github.com/uncip/guardhub/internal/app/store/audit"
	childstore "github.com/uncip/guardhub/internal/app/store/children"
	"github.com/uncip/guardhub/internal/app/store/oauthstate"
	resourcestore "github.com/uncip/guardhub/internal/app/store/saferesources"
	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/auditlog"
	"github.com/uncip/guardhub/internal/app/system/auth"
	"github.com/uncip/guardhub/internal/app/system/metrics"
	"github.com/uncip/guardhub/internal/app/system/ratelimit"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It creates the session manager, wires
// each feature's handler to its store, and mounts the feature routers.
//
// Authorization decisions live in the handlers (via the policy packages),
// so routes are mounted without role middleware: every endpoint answers
// with the same shape whether the caller lacks a session or a role.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Bearer tokens for API clients; cookie-only when no secret is set.
	var tokens *auth.TokenIssuer
	if appCfg.TokenSecret != "" {
		tokens, err = auth.NewTokenIssuer(appCfg.TokenSecret, appCfg.TokenTTL)
		if err != nil {
			logger.Error("token issuer init failed", zap.Error(err))
			return nil, err
		}
		sessionMgr.SetTokenIssuer(tokens)
	}

	// Stores share the single database handle.
	users := userstore.New(deps.MongoDatabase)
	children := childstore.New(deps.MongoDatabase)
	alerts := alertstore.New(deps.MongoDatabase)
	resources := resourcestore.New(deps.MongoDatabase)
	auditStore := audit.New(deps.MongoDatabase)
	stateStore := oauthstate.New(deps.MongoDatabase)

	recorder := auditlog.New(auditStore, logger, auditlog.Config{Mode: appCfg.AuditLogMode})

	loginLimits := ratelimit.NewLoginLimiterWithConfig(
		appCfg.LoginIPLimit, appCfg.LoginIPWindow,
		appCfg.LoginEmailLimit, appCfg.LoginEmailWindow)
	alertLimits := ratelimit.NewAlertLimiter()

	metrics.Init()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Instrument)

	if len(appCfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   appCfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	// Global auth middleware: loads the signed-in user into the request
	// context from the session cookie or a bearer token.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus scrape endpoint.
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Authentication: password login, logout, and Google sign-in.
	loginHandler := loginfeature.NewHandler(users, sessionMgr, tokens, loginLimits, logger)
	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", loginHandler.HandleRegister)
		ar.Post("/login", loginHandler.HandleLogin)
		ar.Post("/logout", logoutHandler.HandleLogout)

		if appCfg.GoogleClientID != "" {
			googleHandler := authgooglefeature.NewHandler(
				users, sessionMgr, stateStore,
				appCfg.GoogleClientID, appCfg.GoogleClientSecret,
				appCfg.BaseURL, appCfg.UIBaseURL, logger)
			ar.Mount("/google", authgooglefeature.Routes(googleHandler))
		}
	})

	// Account management.
	usersHandler := usersfeature.NewHandler(users, recorder, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler))

	// Child profiles.
	childrenHandler := childrenfeature.NewHandler(children, recorder, logger)
	r.Mount("/children", childrenfeature.Routes(childrenHandler))

	// Safety alerts.
	alertsHandler := alertsfeature.NewHandler(alerts, children, recorder, alertLimits, logger)
	r.Mount("/alerts", alertsfeature.Routes(alertsHandler))

	// Audit trail browsing (admin only, enforced in the handler).
	auditHandler := auditfeature.NewHandler(auditStore, logger)
	r.Mount("/audit", auditfeature.Routes(auditHandler))

	// Safe resource directory.
	resourcesHandler := resourcesfeature.NewHandler(resources, recorder, logger)
	r.Mount("/resources", resourcesfeature.Routes(resourcesHandler))

	return r, nil
}
