package app

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	deliverykafka "github.com/yourusername/telegram-reader/relay-service/internal/delivery/kafka"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/registration"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/database"
	httpfx "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/http"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/logger"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/redis"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/telegram"
	"github.com/yourusername/telegram-reader/relay-service/internal/repository/postgres"
)

// CreateRelayApp assembles the relay service: session supervision, the
// registration flow and reply delivery.
func CreateRelayApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		logger.Module,
		metrics.Module,
		database.Module,
		postgres.Module,
		redis.Module,
		infrakafka.Module,
		telegram.Module,
		httpfx.Module,
		deliverykafka.PublisherModule,
		registration.Module,
		session.Module,
		deliverykafka.RelayModule,
		fx.Invoke(registerRelayConsumer),
	)
}

// registerRelayConsumer wires the relay's topic handlers into a consumer
// group with lifecycle hooks
func registerRelayConsumer(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	handler *deliverykafka.RelayHandler,
	logger zerolog.Logger,
) error {
	consumer, err := infrakafka.NewConsumer(
		kafkaCfg.Brokers,
		kafkaCfg.RelayGroupID,
		handler.Handlers(),
		logger.With().Str("component", "kafka-consumer").Logger(),
	)
	if err != nil {
		return err
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			consumer.Start(consumerCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return consumer.Close()
		},
	})

	return nil
}
