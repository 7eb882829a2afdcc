package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

const publishTimeout = 10 * time.Second

// Wrapper supervises one user's live session: it keeps the chat allow-list
// fresh, filters inbound messages against it and routes accepted messages
// either into the batching pipeline or straight to an existing reply thread.
type Wrapper struct {
	userID int64
	client deps.ProtocolClient

	chats     domain.ChatRepository
	threads   domain.ThreadRepository
	publisher domain.MessagePublisher

	allowedMu sync.RWMutex
	allowed   map[int64]struct{}

	refreshInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	refreshDone     chan struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewWrapper builds a session wrapper around a fresh protocol client.
// The wrapper is inert until Start is called.
func NewWrapper(
	userID int64,
	factory deps.ClientFactory,
	cred domain.Credential,
	chats domain.ChatRepository,
	threads domain.ThreadRepository,
	publisher domain.MessagePublisher,
	refreshInterval time.Duration,
	logger zerolog.Logger,
) (*Wrapper, error) {
	w := &Wrapper{
		userID:          userID,
		chats:           chats,
		threads:         threads,
		publisher:       publisher,
		allowed:         make(map[int64]struct{}),
		refreshInterval: refreshInterval,
		stopChan:        make(chan struct{}),
		refreshDone:     make(chan struct{}),
		logger:          logger.With().Str("component", "session").Int64("user_id", userID).Logger(),
		metrics:         metrics.GetDefaultMetrics(),
	}

	client, err := factory.NewClient(cred, w.handleEvent)
	if err != nil {
		return nil, err
	}
	w.client = client

	return w, nil
}

// Start connects the session, loads the chat allow-list and begins the
// periodic refresh loop
func (w *Wrapper) Start(ctx context.Context) error {
	if err := w.client.Connect(ctx); err != nil {
		return err
	}

	if err := w.refreshAllowedChats(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("failed to load chat allow-list, starting empty")
	}

	go w.refreshLoop()

	w.logger.Info().Msg("session started")
	return nil
}

// Stop halts the refresh loop and disconnects the session
func (w *Wrapper) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})

	select {
	case <-w.refreshDone:
	case <-ctx.Done():
	}

	return w.client.Disconnect(ctx)
}

// IsConnected reports whether the underlying session is live
func (w *Wrapper) IsConnected() bool {
	return w.client.IsConnected()
}

// SendReply sends a drafted reply through this user's session and returns
// the id of the sent message
func (w *Wrapper) SendReply(ctx context.Context, chatID, messageID int64, text string) (int64, error) {
	return w.client.SendReply(ctx, chatID, messageID, text)
}

func (w *Wrapper) refreshLoop() {
	defer close(w.refreshDone)

	ticker := time.NewTicker(w.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug().Msg("chat refresh loop stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := w.refreshAllowedChats(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("failed to refresh chat allow-list")
			}
			cancel()
		}
	}
}

func (w *Wrapper) refreshAllowedChats(ctx context.Context) error {
	ids, err := w.chats.GetActiveChatIDs(ctx, w.userID)
	if err != nil {
		return err
	}

	allowed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}

	w.allowedMu.Lock()
	w.allowed = allowed
	w.allowedMu.Unlock()

	w.logger.Debug().Int("chats", len(ids)).Msg("chat allow-list refreshed")
	return nil
}

func (w *Wrapper) isAllowed(chatID int64) bool {
	w.allowedMu.RLock()
	defer w.allowedMu.RUnlock()

	_, ok := w.allowed[chatID]
	return ok
}

// handleEvent is invoked by the protocol client for every inbound message
func (w *Wrapper) handleEvent(event domain.Event) {
	w.metrics.MessagesObserved.Inc()

	if !w.isAllowed(event.ChatID) {
		w.metrics.MessagesFiltered.Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	// Replies into an already-matched thread skip scoring entirely and go
	// straight to the answering queue with the thread's topic.
	if event.ReplyToMessageID != 0 {
		thread, err := w.threads.GetByMessage(ctx, event.ChatID, event.ReplyToMessageID)
		if err == nil {
			w.continueThread(ctx, event, thread)
			return
		}

		var notFound *pkgerrors.NotFoundError
		if !errors.As(err, &notFound) {
			w.logger.Warn().Err(err).
				Int64("chat_id", event.ChatID).
				Int64("reply_to", event.ReplyToMessageID).
				Msg("thread lookup failed, treating message as unthreaded")
		}
	}

	msg := domain.InboundMessage{
		TelegramMessageID: event.MessageID,
		UserID:            w.userID,
		ChatID:            event.ChatID,
		Text:              event.Text,
		SenderUsername:    event.SenderUsername,
		SenderID:          event.SenderID,
		CreatedAt:         event.CreatedAt,
	}

	if err := w.publisher.PublishInboundMessage(ctx, msg); err != nil {
		w.logger.Error().Err(err).
			Int64("chat_id", event.ChatID).
			Int64("message_id", event.MessageID).
			Msg("failed to publish inbound message")
	}
}

func (w *Wrapper) continueThread(ctx context.Context, event domain.Event, thread *domain.Thread) {
	task := domain.ReplyTask{
		UserID:            w.userID,
		ChatID:            event.ChatID,
		TelegramMessageID: event.MessageID,
		Content:           event.Text,
		TopicID:           thread.TopicID,
		Score:             thread.Score,
	}

	if err := w.publisher.PublishReplyTask(ctx, task); err != nil {
		w.logger.Error().Err(err).
			Int64("chat_id", event.ChatID).
			Int64("thread_id", thread.ID).
			Msg("failed to publish thread continuation")
		return
	}

	w.metrics.ThreadContinuations.Inc()
	w.logger.Debug().
		Int64("chat_id", event.ChatID).
		Int64("thread_id", thread.ID).
		Int64("topic_id", thread.TopicID).
		Msg("message routed to existing thread")
}
