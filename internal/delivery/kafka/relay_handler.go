package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/registration"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// RelayHandler dispatches the relay's inbound topics to the registration
// service and the session registry
type RelayHandler struct {
	registration *registration.Service
	registry     *session.Registry
	logger       zerolog.Logger
}

// NewRelayHandler creates the relay topic handler
func NewRelayHandler(
	registrationService *registration.Service,
	registry *session.Registry,
	logger zerolog.Logger,
) *RelayHandler {
	return &RelayHandler{
		registration: registrationService,
		registry:     registry,
		logger:       logger.With().Str("component", "relay_handler").Logger(),
	}
}

// Handlers returns the static topic dispatch table of the relay
func (h *RelayHandler) Handlers() map[string]infrakafka.Handler {
	return map[string]infrakafka.Handler{
		infrakafka.TopicRegistrationInit:     h.handleRegistrationInit,
		infrakafka.TopicRegistrationConfirm:  h.handleRegistrationConfirm,
		infrakafka.TopicRegistrationPassword: h.handleRegistrationPassword,
		infrakafka.TopicClientStart:          h.handleClientStart,
		infrakafka.TopicClientStop:           h.handleClientStop,
		infrakafka.TopicMessageSend:          h.handleMessageSend,
	}
}

// Registration outcomes travel on registration.status, so handshake failures
// never fail the broker message: redelivering an init would re-send codes.

func (h *RelayHandler) handleRegistrationInit(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.RegistrationInitEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal registration.init event")
		return nil
	}

	if event.UserID == 0 || event.APIID == 0 || event.APIHash == "" || event.Phone == "" {
		h.logger.Error().Int64("user_id", event.UserID).Msg("invalid registration.init event")
		return nil
	}

	h.logger.Info().Int64("user_id", event.UserID).Msg("processing registration.init event")

	if err := h.registration.Initiate(ctx, event.UserID, event.APIID, event.APIHash, event.Phone); err != nil {
		h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("registration initiation failed")
	}
	return nil
}

func (h *RelayHandler) handleRegistrationConfirm(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.RegistrationConfirmEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal registration.confirm event")
		return nil
	}

	if event.UserID == 0 || event.Code == "" {
		h.logger.Error().Int64("user_id", event.UserID).Msg("invalid registration.confirm event")
		return nil
	}

	h.logger.Info().Int64("user_id", event.UserID).Msg("processing registration.confirm event")

	result, err := h.registration.ConfirmCode(ctx, event.UserID, event.Code)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("code confirmation failed")
		return nil
	}

	if result == registration.ConfirmNeedsPassword {
		h.logger.Info().Int64("user_id", event.UserID).Msg("registration awaiting two-factor password")
	}
	return nil
}

func (h *RelayHandler) handleRegistrationPassword(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.RegistrationPasswordEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal registration.password event")
		return nil
	}

	if event.UserID == 0 || event.Password == "" {
		h.logger.Error().Int64("user_id", event.UserID).Msg("invalid registration.password event")
		return nil
	}

	h.logger.Info().Int64("user_id", event.UserID).Msg("processing registration.password event")

	if err := h.registration.ConfirmPassword(ctx, event.UserID, event.Password); err != nil {
		h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("password confirmation failed")
	}
	return nil
}

func (h *RelayHandler) handleClientStart(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.ClientStartEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal client.start event")
		return nil
	}

	if event.UserID == 0 {
		h.logger.Error().Msg("invalid client.start event")
		return nil
	}

	h.logger.Info().Int64("user_id", event.UserID).Msg("processing client.start event")

	_, err := h.registry.Start(ctx, event.UserID)
	if err != nil {
		var notFound *pkgerrors.NotFoundError
		switch {
		case errors.As(err, &notFound):
			h.logger.Warn().Int64("user_id", event.UserID).Msg("client.start for unregistered user")
			return nil
		case errors.Is(err, domain.ErrNotAuthorized):
			// Already reported on client.status
			h.logger.Warn().Int64("user_id", event.UserID).Msg("client.start for unauthorized user")
			return nil
		default:
			h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("failed to start session")
			return err
		}
	}
	return nil
}

func (h *RelayHandler) handleClientStop(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.ClientStopEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal client.stop event")
		return nil
	}

	if event.UserID == 0 {
		h.logger.Error().Msg("invalid client.stop event")
		return nil
	}

	h.logger.Info().Int64("user_id", event.UserID).Msg("processing client.stop event")

	if err := h.registry.Stop(ctx, event.UserID); err != nil {
		var notFound *pkgerrors.ClientNotFoundError
		if errors.As(err, &notFound) {
			// Stopping a stopped session is a no-op
			h.logger.Debug().Int64("user_id", event.UserID).Msg("client.stop for idle user")
			return nil
		}
		h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("failed to stop session")
	}
	return nil
}

func (h *RelayHandler) handleMessageSend(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event infrakafka.MessageSendEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal message.send event")
		return nil
	}

	if event.UserID == 0 || event.ChatID == 0 || event.Text == "" {
		h.logger.Error().Int64("user_id", event.UserID).Msg("invalid message.send event")
		return nil
	}

	wrapper, err := h.registry.Get(event.UserID)
	if err != nil {
		h.logger.Warn().Int64("user_id", event.UserID).Msg("message.send for user without a running session")
		return nil
	}

	sentID, err := wrapper.SendReply(ctx, event.ChatID, event.ReplyToMessageID, event.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPeerNotResolved):
			h.logger.Warn().
				Int64("user_id", event.UserID).
				Int64("chat_id", event.ChatID).
				Msg("chat peer not seen yet, reply dropped")
			return nil
		case errors.Is(err, domain.ErrNotConnected):
			h.logger.Warn().Int64("user_id", event.UserID).Msg("session down, reply will be redelivered")
			return err
		default:
			h.logger.Error().Err(err).Int64("user_id", event.UserID).Msg("failed to send reply")
			return err
		}
	}

	h.logger.Info().
		Int64("user_id", event.UserID).
		Int64("chat_id", event.ChatID).
		Int64("sent_message_id", sentID).
		Msg("reply delivered")
	return nil
}
