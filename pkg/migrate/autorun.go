package migrate

import (
	"context"
	"fmt"

	"github.com/insaansher/sherpos-terminal/pkg/config"
	"github.com/insaansher/sherpos-terminal/pkg/db"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// MaybeRun applies pending migrations at boot when auto-migrate is enabled.
// Terminals in the field have no operator running migration commands, so this
// defaults on.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.Store.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running local store migrations")
	if err := Run(ctx, sqlDB, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "local store migrations completed")
	return nil
}
