package batch

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
)

// Module provides batching components for fx DI
var Module = fx.Module("batch",
	fx.Provide(NewManagerFx),
)

// NewManagerFx creates the collector manager from config
func NewManagerFx(
	lc fx.Lifecycle,
	cfg *config.BatchConfig,
	flush FlushFunc,
	logger zerolog.Logger,
) *Manager {
	manager := NewManager(cfg.Size, cfg.Time, flush, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close(ctx)
		},
	})

	return manager
}
