package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
)

// Module provides the Kafka producer for fx DI. Consumers are registered by
// each application with its own topic handler map.
var Module = fx.Module("kafka",
	fx.Provide(NewProducerFx),
)

// NewProducerFx creates a Kafka producer with fx lifecycle management
func NewProducerFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	serviceCfg *config.ServiceConfig,
	logger zerolog.Logger,
) (*Producer, error) {
	producer, err := NewProducer(
		kafkaCfg.Brokers,
		serviceCfg.Name+"-producer",
		logger.With().Str("component", "kafka-producer").Logger(),
	)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}
