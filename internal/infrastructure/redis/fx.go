package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// Module provides Redis components for fx dependency injection
var Module = fx.Module("redis",
	fx.Provide(
		NewClientFx,
		NewPendingAuthStore,
		// Provide PendingAuthStore interface for the registration flow
		func(s *PendingAuthStore) domain.PendingAuthStore {
			return s
		},
	),
)

// NewClientFx creates a Redis client with fx lifecycle management
func NewClientFx(
	lc fx.Lifecycle,
	cfg *config.RedisConfig,
	logger zerolog.Logger,
) (*redis.Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Closing redis connection")
			return client.Close()
		},
	})

	logger.Info().Str("addr", cfg.Addr).Msg("Redis connected successfully")

	return client, nil
}
