package migrate

import (
	"context"
	"fmt"

	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/logger"
)

// MaybeRunDev auto-migrates the schema when the dev flag asks for it.
// Production schemas are managed by SQL migrations, never from here.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil {
		return fmt.Errorf("config and db client required")
	}
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.App.IsProd() {
		return fmt.Errorf("auto-migrate is disabled in prod")
	}

	err := client.DB().WithContext(ctx).AutoMigrate(
		&models.Cart{},
		&models.CartItem{},
		&models.AppliedPromotion{},
		&models.Promotion{},
		&models.PromotionUsage{},
		&models.VariantStock{},
		&models.InventoryReservation{},
		&models.OutboxEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "dev auto-migration complete")
	}
	return nil
}
