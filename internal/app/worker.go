package app

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	deliverykafka "github.com/yourusername/telegram-reader/relay-service/internal/delivery/kafka"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/batch"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/matcher"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/database"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/embeddings"
	httpfx "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/http"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/logger"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
	"github.com/yourusername/telegram-reader/relay-service/internal/repository/postgres"
)

// CreateWorkerApp assembles the worker service: the batching pipeline and
// the topic matcher.
func CreateWorkerApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		logger.Module,
		metrics.Module,
		database.Module,
		postgres.Module,
		embeddings.Module,
		infrakafka.Module,
		httpfx.Module,
		deliverykafka.PublisherModule,
		matcher.Module,
		batch.Module,
		deliverykafka.WorkerModule,
		fx.Invoke(registerWorkerConsumer),
	)
}

// registerWorkerConsumer wires the worker's topic handlers into a consumer
// group with lifecycle hooks
func registerWorkerConsumer(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	handler *deliverykafka.WorkerHandler,
	logger zerolog.Logger,
) error {
	consumer, err := infrakafka.NewConsumer(
		kafkaCfg.Brokers,
		kafkaCfg.WorkerGroupID,
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
