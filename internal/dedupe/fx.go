package dedupe

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dealbill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("dedupe",
	fx.Provide(NewStore),
)

// NewStore selects the dedupe backend from configuration. Anything
// other than "redis" falls back to the in-process store.
func NewStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Store {
	if cfg.DedupeBackend != "redis" {
		return NewMemoryStore(4096)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return NewRedisStore(client)
}
