// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, request limits); AppConfig is everything specific to
// ClubHub. Values come from environment variables, config files, or
// command-line flags, loaded in LoadConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer token verification. Tokens are issued by the campus
	// identity service; this app only verifies them.
	TokenSecret string // HS256 signing secret shared with the issuer
	TokenIssuer string // Expected iss claim

	// BanRestoreWindow is how long after a ban an unban still restores
	// the user's club memberships from the snapshot.
	BanRestoreWindow time.Duration

	// Chat send rate limiting, per user.
	ChatSendLimit  int
	ChatSendWindow time.Duration

	// AdminEmail names the account promoted to the ADMIN app role on
	// startup (created if missing). Blank disables the bootstrap.
	AdminEmail string
}
