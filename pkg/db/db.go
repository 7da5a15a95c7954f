package db

import (
	"context"
	"time"

	"github.com/smallbiznis/dealbill/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

// Module opens the database connection and registers lifecycle hooks.
var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens a gorm connection with tracing and metrics plugins installed.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				log.Info("closing database connection")
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
