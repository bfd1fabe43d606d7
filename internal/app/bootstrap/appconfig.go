// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP/HTTPS ports,
// TLS, logging level and format, request limits). AppConfig is everything
// specific to GuardHub: database connection strings, session and token
// secrets, OAuth credentials, audit and rate-limit knobs.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: guardhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Bearer token configuration for API clients (mobile apps).
	// Token auth is disabled when TokenSecret is blank.
	TokenSecret string        // HMAC signing secret (at least 32 chars)
	TokenTTL    time.Duration // Token lifetime (default: 24h)

	// CORS configuration for browser-based UIs.
	CORSOrigins []string // Allowed origins; empty disables CORS handling

	// Audit trail configuration
	AuditLogMode string // "all" (db+log), "db", "log", or "off"

	// Per-class DB operation timeouts. Zero keeps the built-in default.
	DBTimeoutShort  time.Duration // Single-document reads
	DBTimeoutMedium time.Duration // List queries and simple writes
	DBTimeoutLong   time.Duration // Multi-collection writes, audit browsing

	// Login rate limiting
	LoginIPLimit     int           // Attempts per client IP per window
	LoginIPWindow    time.Duration // Window for the per-IP limit
	LoginEmailLimit  int           // Attempts per account per window
	LoginEmailWindow time.Duration // Window for the per-account limit

	// Google OAuth configuration (sign-in is disabled when blank)
	GoogleClientID     string
	GoogleClientSecret string

	// BaseURL is where this service is reachable (OAuth callbacks).
	BaseURL string // e.g., "https://api.guardhub.example" or "http://localhost:8080"
	// UIBaseURL is where browsers land after OAuth round trips.
	UIBaseURL string // e.g., "https://guardhub.example" or "http://localhost:3000"

	// Admin bootstrap: promotes or creates this account on startup.
	AdminEmail    string
	AdminPassword string // Only used when the account does not exist yet
}
