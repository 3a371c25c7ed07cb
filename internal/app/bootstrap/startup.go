// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/metrics"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	metrics.Init()

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin promotes the configured account to the ADMIN app role,
// creating it when it does not exist yet. Idempotent across restarts.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		created, err := users.Create(ctx, models.User{
			Name:        "Platform Admin",
			Email:       email,
			AppRole:     models.AppRoleAdmin,
			IsConfirmed: true,
		})
		if err != nil {
			return err
		}
		logger.Info("created platform admin",
			zap.String("email", email),
			zap.String("user_id", created.ID.Hex()))
		return nil
	}

	if existing.AppRole == models.AppRoleAdmin {
		return nil
	}
	_, err = users.Collection().UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
		"app_role":   models.AppRoleAdmin,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	logger.Info("promoted platform admin",
		zap.String("email", email),
		zap.String("user_id", existing.ID.Hex()))
	return nil
}
