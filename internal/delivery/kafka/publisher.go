package kafka

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
)

// Publisher sends domain events to their broker topics, keyed by user id so
// each user's events keep their order.
type Publisher struct {
	producer *infrakafka.Producer
	logger   zerolog.Logger
}

// NewPublisher creates a publisher over the shared producer
func NewPublisher(producer *infrakafka.Producer, logger zerolog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger.With().Str("component", "publisher").Logger(),
	}
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// PublishRegistrationStatus emits a registration progress event
func (p *Publisher) PublishRegistrationStatus(ctx context.Context, status domain.RegistrationStatus) error {
	return p.producer.Publish(ctx, infrakafka.TopicRegistrationStatus, userKey(status.UserID), status)
}

// PublishClientStatus emits a session health transition
func (p *Publisher) PublishClientStatus(ctx context.Context, userID int64, event string) error {
	return p.producer.Publish(ctx, infrakafka.TopicClientStatus, userKey(userID), infrakafka.ClientStatusEvent{
		UserID: userID,
		Event:  event,
	})
}

// PublishClientError emits a session error report
func (p *Publisher) PublishClientError(ctx context.Context, userID int64, message string) error {
	return p.producer.Publish(ctx, infrakafka.TopicClientError, userKey(userID), infrakafka.ClientErrorEvent{
		UserID: userID,
		Error:  message,
	})
}

// PublishInboundMessage forwards an accepted inbound message to the batching
// pipeline
func (p *Publisher) PublishInboundMessage(ctx context.Context, msg domain.InboundMessage) error {
	return p.producer.Publish(ctx, infrakafka.TopicMessageProcess, userKey(msg.UserID), msg)
}

// PublishReplyTask emits a message that should be answered
func (p *Publisher) PublishReplyTask(ctx context.Context, task domain.ReplyTask) error {
	return p.producer.Publish(ctx, infrakafka.TopicMessageAnswer, userKey(task.UserID), task)
}

var (
	_ domain.RegistrationPublisher = (*Publisher)(nil)
	_ domain.ClientStatusPublisher = (*Publisher)(nil)
	_ domain.MessagePublisher      = (*Publisher)(nil)
)
