package migration

import (
	"github.com/smallbiznis/dealbill/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres deployments (dev sqlite) manage schema separately.
			return nil
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
