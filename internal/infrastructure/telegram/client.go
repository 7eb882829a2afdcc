package telegram

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// EventHandler receives every inbound message observed by a session
type EventHandler func(event domain.Event)

// Client runs one user's Telegram session over MTProto. Inbound messages
// are converted to domain events and handed to the event handler; replies
// go out through the peers remembered from update entities.
type Client struct {
	client *telegram.Client

	apiID   int
	apiHash string

	storage *CredentialSessionStorage
	peers   *peerCache
	handler EventHandler

	connected     bool
	connecting    bool
	disconnecting bool
	mu            sync.RWMutex
	cancelFunc    context.CancelFunc
	runDone       chan struct{}

	// runFunc overrides the client run loop in tests
	runFunc func(ctx context.Context, f func(context.Context) error) error

	logger zerolog.Logger

	api *tg.Client

	rateLimiter *rate.Limiter
}

// ClientConfig holds configuration for a session client
type ClientConfig struct {
	Credential domain.Credential
	Repo       domain.CredentialRepository
	Handler    EventHandler
	Logger     zerolog.Logger
}

// maskPhoneNumber masks phone number for logging (keeps first 2 and last 2 digits)
func maskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return "***"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

// NewClient creates a session client for a registered credential
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Credential.APIID == 0 {
		return nil, fmt.Errorf("api id is required")
	}
	if cfg.Credential.APIHash == "" {
		return nil, fmt.Errorf("api hash is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}

	maskedPhone := maskPhoneNumber(cfg.Credential.Phone)

	return &Client{
		apiID:   cfg.Credential.APIID,
		apiHash: cfg.Credential.APIHash,
		storage: NewCredentialSessionStorage(cfg.Credential.UserID, cfg.Credential.SessionToken, cfg.Repo),
		peers:   newPeerCache(),
		handler: cfg.Handler,
		logger: cfg.Logger.With().
			Str("component", "mtproto_client").
			Int64("user_id", cfg.Credential.UserID).
			Str("phone", maskedPhone).
			Logger(),
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}, nil
}

// Connect dials Telegram and restores the stored session. Returns
// domain.ErrNotAuthorized when the stored session has been revoked; the
// caller decides whether to surface that to the user.
// The caller should provide a context with timeout to prevent hanging.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already connected")
		return nil
	}
	if c.disconnecting {
		c.mu.Unlock()
		return fmt.Errorf("disconnect in progress, cannot connect")
	}
	if c.connecting {
		c.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	c.connecting = true

	c.logger.Info().Msg("connecting to Telegram")

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		c.handleUpdate(e, update.Message)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		c.handleUpdate(e, update.Message)
		return nil
	})

	c.client = telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: c.storage,
		UpdateHandler:  dispatcher,
	})

	clientCtx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)
	c.runDone = make(chan struct{})

	run := c.client.Run
	if c.runFunc != nil {
		run = c.runFunc
	}
	runDone := c.runDone

	// Release the lock before waiting. The run goroutine takes the same
	// lock in setConnected, so holding it here would stall every connect
	// until the caller's deadline.
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	go func() {
		defer close(runDone)
		err := run(clientCtx, func(ctx context.Context) error {
			c.mu.Lock()
			c.api = c.client.API()
			c.mu.Unlock()

			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}

			if !status.Authorized {
				c.logger.Warn().Msg("stored session is not authorized")
				return domain.ErrNotAuthorized
			}

			c.logger.Info().Msg("session restored from storage")

			c.setConnected(true)
			close(readyChan)

			// Keep connection alive
			<-ctx.Done()
			return ctx.Err()
		})
		c.setConnected(false)
		select {
		case errChan <- err:
		default:
		}
	}()

	select {
	case <-readyChan:
		return nil
	case err := <-errChan:
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// Disconnect stops the session gracefully. The session token is saved by the
// underlying client before shutdown. Safe to call multiple times.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()

	if c.disconnecting {
		c.mu.Unlock()
		c.logger.Debug().Msg("disconnect already in progress")
		return nil
	}

	if c.cancelFunc == nil {
		c.mu.Unlock()
		c.logger.Debug().Msg("already disconnected")
		return nil
	}

	c.logger.Info().Msg("disconnecting from Telegram")

	c.disconnecting = true
	cancelFunc := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	cancelFunc()

	if runDone != nil {
		select {
		case <-runDone:
			c.logger.Debug().Msg("client stopped gracefully")
		case <-ctx.Done():
			c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
		}
	}

	c.mu.Lock()
	c.client = nil
	c.api = nil
	c.connected = false
	c.cancelFunc = nil
	c.runDone = nil
	c.disconnecting = false
	c.mu.Unlock()

	c.logger.Info().Msg("successfully disconnected from Telegram")
	return nil
}

// IsConnected reports whether the session is currently live. Goes false as
// soon as the underlying run loop exits for any reason.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendReply sends a text reply to a message in a chat the session has seen
// and returns the id of the sent message. Returns domain.ErrPeerNotResolved
// when the chat's peer has not appeared in any update yet.
func (c *Client) SendReply(ctx context.Context, chatID, messageID int64, text string) (int64, error) {
	c.mu.RLock()
	if !c.connected || c.api == nil {
		c.mu.RUnlock()
		return 0, domain.ErrNotConnected
	}
	api := c.api
	c.mu.RUnlock()

	peer, ok := c.peers.get(chatID)
	if !ok {
		return 0, domain.ErrPeerNotResolved
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	updates, err := api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: rand.Int63(),
		ReplyTo:  &tg.InputReplyToMessage{ReplyToMsgID: int(messageID)},
	})
	if err != nil {
		c.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
		return 0, fmt.Errorf("failed to send reply: %w", err)
	}

	sentID := sentMessageID(updates)

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int64("message_id", messageID).
		Int64("sent_message_id", sentID).
		Msg("reply sent")

	return sentID, nil
}

// sentMessageID extracts the id of the message a send produced. Private chat
// sends come back as a short update; channel sends carry the id in the
// update list.
func sentMessageID(updates tg.UpdatesClass) int64 {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return int64(u.ID)
	case *tg.Updates:
		for _, upd := range u.Updates {
			if idUpd, ok := upd.(*tg.UpdateMessageID); ok {
				return int64(idUpd.ID)
			}
		}
	}
	return 0
}

// handleUpdate converts an incoming message update into a domain event
func (c *Client) handleUpdate(e tg.Entities, message tg.MessageClass) {
	c.peers.observe(e)

	msg, ok := message.(*tg.Message)
	if !ok {
		return
	}
	if msg.Out || msg.Message == "" {
		return
	}

	event := domain.Event{
		ChatID:    markedChatID(msg.PeerID),
		MessageID: int64(msg.ID),
		Text:      msg.Message,
		CreatedAt: time.Unix(int64(msg.Date), 0),
	}

	if from, ok := msg.GetFromID(); ok {
		if peerUser, ok := from.(*tg.PeerUser); ok {
			event.SenderID = peerUser.UserID
		}
	} else if peerUser, ok := msg.PeerID.(*tg.PeerUser); ok {
		// Direct chats carry no from_id, the peer is the sender
		event.SenderID = peerUser.UserID
	}

	if user, ok := e.Users[event.SenderID]; ok {
		event.SenderUsername = user.Username
	}

	if replyTo, ok := msg.GetReplyTo(); ok {
		if header, ok := replyTo.(*tg.MessageReplyHeader); ok {
			event.ReplyToMessageID = int64(header.ReplyToMsgID)
		}
	}

	c.handler(event)
}
