package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
)

const maxRetries = 3

// Handler processes one consumed message. A non-nil error after all retries
// leaves the message unmarked so the group redelivers it.
type Handler func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Consumer reads broker topics through a consumer group and dispatches each
// message to the handler registered for its topic.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	handlers      map[string]Handler
	topics        []string
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewConsumer creates a Kafka consumer group over the topics of the handler map
func NewConsumer(
	brokers []string,
	groupID string,
	handlers map[string]Handler,
	logger zerolog.Logger,
) (*Consumer, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("no topic handlers registered")
	}

	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create Kafka consumer group")
		return nil, err
	}

	topics := make([]string, 0, len(handlers))
	for topic := range handlers {
		topics = append(topics, topic)
	}

	logger.Info().
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Kafka consumer group successfully initialized")

	return &Consumer{
		consumerGroup: consumerGroup,
		handlers:      handlers,
		topics:        topics,
		logger:        logger,
		metrics:       metrics.GetDefaultMetrics(),
	}, nil
}

// Start begins consuming messages in a goroutine
func (c *Consumer) Start(ctx context.Context) {
	go func() {
		for {
			if ctx.Err() != nil {
				c.logger.Info().Msg("consumer context canceled, stopping consumer group")
				return
			}

			if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
				c.logger.Error().Err(err).Msg("error from consumer group")
			}
		}
	}()

	c.logger.Info().
		Strs("topics", c.topics).
		Msg("Kafka consumer group started")
}

// Close gracefully shuts down the consumer
func (c *Consumer) Close() error {
	if c.consumerGroup == nil {
		return nil
	}

	c.logger.Info().Msg("closing Kafka consumer group...")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error().Err(err).Msg("failed to close Kafka consumer group")
		return err
	}

	c.logger.Info().Msg("Kafka consumer group successfully closed")
	return nil
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.logger.Info().
		Str("member_id", session.MemberID()).
		Msg("consumer group session setup completed")
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(session sarama.ConsumerGroupSession) error {
	c.logger.Info().
		Str("member_id", session.MemberID()).
		Msg("consumer group session cleanup completed")
	return nil
}

// ConsumeClaim processes messages from a partition. Messages whose handler
// keeps failing are left unmarked and will be redelivered.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c.logger.Info().
		Str("topic", claim.Topic()).
		Int32("partition", claim.Partition()).
		Msg("starting message consumption from partition")

	for msg := range claim.Messages() {
		c.logger.Debug().
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received message from Kafka")

		c.metrics.KafkaMessagesConsumed.WithLabelValues(msg.Topic).Inc()

		if err := c.processMessage(session.Context(), msg); err != nil {
			c.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("all retry attempts failed, leaving message for redelivery")
			continue
		}

		session.MarkMessage(msg, "")
	}

	c.logger.Info().
		Str("topic", claim.Topic()).
		Int32("partition", claim.Partition()).
		Msg("stopped message consumption from partition")

	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		c.logger.Warn().
			Str("topic", msg.Topic).
			Msg("received message from unknown topic")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = handler(ctx, msg)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", maxRetries).
			Str("topic", msg.Topic).
			Msg("handler failed to process event, retrying")
	}

	return lastErr
}
