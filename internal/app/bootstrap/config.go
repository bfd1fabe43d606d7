// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for GuardHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: GUARDHUB_MONGO_URI, GUARDHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "guardhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "guardhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	{Name: "token_secret", Default: "", Desc: "Bearer token HMAC secret (at least 32 chars; blank disables token auth)"},
	{Name: "token_ttl", Default: "24h", Desc: "Bearer token lifetime (e.g., 12h, 24h)"},

	{Name: "cors_origins", Default: "", Desc: "Comma-separated list of allowed CORS origins (blank disables CORS)"},

	// Audit trail settings
	{Name: "audit_log_mode", Default: "all", Desc: "Audit recording: 'all' (db+log), 'db', 'log', or 'off'"},

	// Per-class DB operation timeouts (blank keeps built-in defaults)
	{Name: "db_timeout_short", Default: "", Desc: "Timeout for single-document reads (e.g., 5s)"},
	{Name: "db_timeout_medium", Default: "", Desc: "Timeout for list queries and simple writes (e.g., 10s)"},
	{Name: "db_timeout_long", Default: "", Desc: "Timeout for multi-collection writes (e.g., 30s)"},

	// Login rate limiting
	{Name: "login_ip_limit", Default: 10, Desc: "Login attempts allowed per client IP per window"},
	{Name: "login_ip_window", Default: "1m", Desc: "Window for the per-IP login limit"},
	{Name: "login_email_limit", Default: 5, Desc: "Login attempts allowed per account per window"},
	{Name: "login_email_window", Default: "5m", Desc: "Window for the per-account login limit"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL of this service (OAuth callbacks)"},
	{Name: "ui_base_url", Default: "http://localhost:3000", Desc: "Base URL of the browser UI (OAuth landing)"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of the admin account to promote or create on startup"},
	{Name: "admin_password", Default: "", Desc: "Password for the bootstrap admin (only used on first creation)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, GUARDHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "GUARDHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		TokenSecret: appValues.String("token_secret"),
		TokenTTL:    appValues.Duration("token_ttl", 24*time.Hour),

		CORSOrigins: splitOrigins(appValues.String("cors_origins")),

		AuditLogMode: appValues.String("audit_log_mode"),

		DBTimeoutShort:  appValues.Duration("db_timeout_short", 0),
		DBTimeoutMedium: appValues.Duration("db_timeout_medium", 0),
		DBTimeoutLong:   appValues.Duration("db_timeout_long", 0),

		LoginIPLimit:     appValues.Int("login_ip_limit"),
		LoginIPWindow:    appValues.Duration("login_ip_window", time.Minute),
		LoginEmailLimit:  appValues.Int("login_email_limit"),
		LoginEmailWindow: appValues.Duration("login_email_window", 5*time.Minute),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		BaseURL:   strings.TrimRight(appValues.String("base_url"), "/"),
		UIBaseURL: strings.TrimRight(appValues.String("ui_base_url"), "/"),

		AdminEmail:    appValues.String("admin_email"),
		AdminPassword: appValues.String("admin_password"),
	}

	return coreCfg, appCfg, nil
}

// splitOrigins turns a comma-separated origin list into a slice,
// dropping empty entries.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.TokenSecret != "" && len(strings.TrimSpace(appCfg.TokenSecret)) < 32 {
		return fmt.Errorf("token_secret must be at least 32 characters")
	}

	switch appCfg.AuditLogMode {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log_mode must be 'all', 'db', 'log', or 'off' (got %q)", appCfg.AuditLogMode)
	}

	// OAuth credentials travel in pairs.
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}

	if coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be changed from the development default in production")
	}

	return nil
}
