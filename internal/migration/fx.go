package migration

import (
	"github.com/smallbiznis/hookrelay/internal/config"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"github.com/smallbiznis/hookrelay/internal/seed"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// MySQL and SQLite deployments lean on gorm's schema sync;
			// the versioned SQL only targets postgres.
			if err := conn.AutoMigrate(
				&platformdomain.Platform{},
				&subscriptiondomain.Subscription{},
				&eventdomain.WebhookEvent{},
				&deliverydomain.DeliveryAttempt{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedPlatforms {
			return seed.EnsurePlatforms(conn)
		}
		return nil
	}),
)
