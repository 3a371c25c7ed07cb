// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ClubHub, loaded via
// WAFFLE's config system with support for:
//   - Config files: mongo_uri, token_secret, etc.
//   - Environment variables: CLUBHUB_MONGO_URI, CLUBHUB_TOKEN_SECRET, etc.
//   - Command-line flags: --mongo_uri, --token_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "clubhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "token_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "HS256 bearer token secret (must be strong in production)"},
	{Name: "token_issuer", Default: "clubhub", Desc: "Expected iss claim on bearer tokens"},

	{Name: "ban_restore_window", Default: "720h", Desc: "How long after a ban an unban restores memberships (e.g., 720h for 30 days)"},

	{Name: "chat_send_limit", Default: 30, Desc: "Chat messages allowed per user per window"},
	{Name: "chat_send_window", Default: "1m", Desc: "Window for the chat send limit"},

	{Name: "admin_email", Default: "", Desc: "Email of the platform admin (promotes/creates on startup)"},
}

// LoadConfig loads WAFFLE core config and app-specific config. It is
// called early in startup so both layers have configuration before any
// backends or handlers are built.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CLUBHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TokenSecret: appValues.String("token_secret"),
		TokenIssuer: appValues.String("token_issuer"),

		BanRestoreWindow: appValues.Duration("ban_restore_window", 720*time.Hour),

		ChatSendLimit:  appValues.Int("chat_send_limit"),
		ChatSendWindow: appValues.Duration("chat_send_window", time.Minute),

		AdminEmail: appValues.String("admin_email"),
	}
	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation. Returning an
// error aborts startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if coreCfg.Env == "prod" && appCfg.TokenSecret == "dev-only-change-me-please-0123456789ABCDEF" {
		return fmt.Errorf("token_secret must be set in production")
	}
	if appCfg.ChatSendLimit < 1 {
		return fmt.Errorf("chat_send_limit must be at least 1")
	}
	if appCfg.BanRestoreWindow <= 0 {
		return fmt.Errorf("ban_restore_window must be positive")
	}
	return nil
}
