package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/batch"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/matcher"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
)

// WorkerHandler feeds inbound messages into the batching pipeline
type WorkerHandler struct {
	manager *batch.Manager
	matcher *matcher.Matcher
	logger  zerolog.Logger
}

// NewWorkerHandler creates the worker topic handler
func NewWorkerHandler(manager *batch.Manager, m *matcher.Matcher, logger zerolog.Logger) *WorkerHandler {
	return &WorkerHandler{
		manager: manager,
		matcher: m,
		logger:  logger.With().Str("component", "worker_handler").Logger(),
	}
}

// Handlers returns the static topic dispatch table of the worker
func (h *WorkerHandler) Handlers() map[string]infrakafka.Handler {
	return map[string]infrakafka.Handler{
		infrakafka.TopicMessageProcess:  h.handleMessageProcess,
		infrakafka.TopicTopicInvalidate: h.handleTopicInvalidate,
	}
}

// handleMessageProcess adds one message to its batch. When the add fills the
// batch, the flush runs here and its error fails the broker message, so a
// failed size-triggered flush gets the whole tail redelivered.
func (h *WorkerHandler) handleMessageProcess(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var inbound domain.InboundMessage
	if err := json.Unmarshal(msg.Value, &inbound); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal message.process event")
		return nil
	}

	if inbound.UserID == 0 || inbound.ChatID == 0 {
		h.logger.Error().
			Int64("user_id", inbound.UserID).
			Int64("chat_id", inbound.ChatID).
			Msg("invalid message.process event")
		return nil
	}

	return h.manager.Add(ctx, inbound)
}

// handleTopicInvalidate drops the cached topic embeddings of one chat after
// its topic set changed
func (h *WorkerHandler) handleTopicInvalidate(_ context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.TopicInvalidateEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal topic.invalidate event")
		return nil
	}

	if event.UserID == 0 || event.ChatID == 0 {
		h.logger.Error().
			Int64("user_id", event.UserID).
			Int64("chat_id", event.ChatID).
			Msg("invalid topic.invalidate event")
		return nil
	}

	h.matcher.Invalidate(domain.PartitionKey{UserID: event.UserID, ChatID: event.ChatID})
	return nil
}
