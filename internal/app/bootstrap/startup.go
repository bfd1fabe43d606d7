// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	userstore "github.com/uncip/guardhub/internal/app/store/users"
	"github.com/uncip/guardhub/internal/app/system/authz"
	"github.com/uncip/guardhub/internal/app/system/timeouts"
	"github.com/uncip/guardhub/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.DBTimeoutShort,
		Medium: appCfg.DBTimeoutMedium,
		Long:   appCfg.DBTimeoutLong,
	})

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}
	return nil
}

// ensureAdmin guarantees an active admin account exists for the given email.
// An existing account is promoted and re-enabled; a missing one is created
// with the configured password. Creation without a password is an error so
// a fresh deployment never ends up with an unreachable admin.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != string(authz.RoleAdmin) {
			if err := users.UpdateRole(ctx, existing.ID, string(authz.RoleAdmin), []string{string(authz.RoleAdmin)}); err != nil {
				return err
			}
			logger.Info("promoted existing account to admin", zap.String("email", email))
		}
		if !existing.IsActive {
			if err := users.SetActive(ctx, existing.ID, true); err != nil {
				return err
			}
			logger.Info("re-enabled admin account", zap.String("email", email))
		}
		return nil

	case errors.Is(err, userstore.ErrNotFound):
		if password == "" {
			return fmt.Errorf("admin account %q does not exist and no admin_password is configured", email)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		_, err = users.Create(ctx, models.User{
			Email:        email,
			DisplayName:  "Administrator",
			PasswordHash: string(hash),
			AuthMethod:   "password",
			Role:         string(authz.RoleAdmin),
			Roles:        []string{string(authz.RoleAdmin)},
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		logger.Info("created bootstrap admin account", zap.String("email", email))
		return nil

	default:
		return err
	}
}
