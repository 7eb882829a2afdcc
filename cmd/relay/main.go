package main

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/app"
)

func main() {
	fx.New(
		app.CreateRelayApp(),
		fx.Invoke(run),
	).Run()
}

func run(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Str("port", cfg.Service.Port).
				Msg("Starting relay service")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Relay service stopped")
			return nil
		},
	})
}
