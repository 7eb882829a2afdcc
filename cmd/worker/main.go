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
		app.CreateWorkerApp(),
		fx.Invoke(run),
	).Run()
}

func run(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Msg("Starting worker service")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Worker service stopped")
			return nil
		},
	})
}
