package session

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// Module provides session supervision components for fx DI
var Module = fx.Module("session",
	fx.Provide(
		NewRegistry,
		NewWatchdogFx,
	),
	fx.Invoke(registerLifecycle),
)

// NewWatchdogFx creates the session watchdog from config
func NewWatchdogFx(
	registry *Registry,
	status domain.ClientStatusPublisher,
	cfg *config.SessionConfig,
	logger zerolog.Logger,
) *Watchdog {
	return NewWatchdog(registry, status, cfg.WatchdogInterval, logger)
}

// registerLifecycle rehydrates sessions on start and tears everything down
// on stop
func registerLifecycle(lc fx.Lifecycle, registry *Registry, watchdog *Watchdog) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go registry.StartAll(context.Background())
			watchdog.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			watchdog.Stop()
			registry.StopAll(ctx)
			return nil
		},
	})
}
