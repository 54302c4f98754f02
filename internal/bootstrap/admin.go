package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/config"
	"github.com/DTADMI/gamehub-api/internal/password"
	"github.com/DTADMI/gamehub-api/internal/service"
	"github.com/DTADMI/gamehub-api/internal/user"
)

// EnsureAdmin creates the configured admin account on startup if missing.
// With no admin credentials configured it is a no-op, which is the normal
// production state; the knob exists for dev and e2e environments.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, users user.Repository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, users user.Repository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, user.User{
		ID:           node.Generate().Int64(),
		Username:     "admin",
		Email:        email,
		PasswordHash: hashed,
		Roles:        []string{service.RoleAdmin, service.RoleUser},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	logger.Info("admin account provisioned", zap.Int64("user_id", created.ID))
	return nil
}
