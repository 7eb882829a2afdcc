package domain

import (
	"context"
	"time"
)

// CredentialRepository reads and writes durable per-user Telegram credentials.
type CredentialRepository interface {
	// GetByUserID returns the credential for a user or a NotFoundError.
	GetByUserID(ctx context.Context, userID int64) (*Credential, error)

	// All returns every stored credential.
	All(ctx context.Context) ([]Credential, error)

	// Save creates or replaces the credential for cred.UserID.
	Save(ctx context.Context, cred *Credential) error

	// UpdateSessionToken persists a refreshed session token for a user.
	UpdateSessionToken(ctx context.Context, userID int64, token string) error
}

// ChatRepository exposes the chats a user has handed over to the bot.
// Read-only from the relay's perspective.
type ChatRepository interface {
	GetActiveChatIDs(ctx context.Context, userID int64) ([]int64, error)
}

// TopicRepository exposes the topic set bound to a chat, ordered by topic id.
// Read-only from the worker's perspective.
type TopicRepository interface {
	GetTopics(ctx context.Context, userID, chatID int64) ([]Topic, error)
}

// ThreadRepository resolves a message to the reply thread it belongs to.
type ThreadRepository interface {
	// GetByMessage returns the thread containing the given message or a
	// NotFoundError when the message does not belong to any thread.
	GetByMessage(ctx context.Context, chatID, messageID int64) (*Thread, error)
}

// PendingAuthStore holds in-flight registration handshakes with an explicit
// expiry. A Get after expiry returns a NotFoundError.
type PendingAuthStore interface {
	Put(ctx context.Context, auth PendingAuth, ttl time.Duration) error
	Get(ctx context.Context, userID int64) (*PendingAuth, error)
	Delete(ctx context.Context, userID int64) error
}

// StatusError is the machine-readable error carried in status events.
type StatusError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegistrationStatus is the payload of the registration.status topic.
type RegistrationStatus struct {
	UserID int64        `json:"user_id"`
	Status string       `json:"status"`
	Error  *StatusError `json:"error,omitempty"`
}

// RegistrationPublisher emits registration progress events to the bus.
type RegistrationPublisher interface {
	PublishRegistrationStatus(ctx context.Context, status RegistrationStatus) error
}

// ClientStatusPublisher emits session health and error events to the bus.
type ClientStatusPublisher interface {
	PublishClientStatus(ctx context.Context, userID int64, event string) error
	PublishClientError(ctx context.Context, userID int64, message string) error
}

// MessagePublisher forwards accepted inbound messages and reply tasks.
type MessagePublisher interface {
	PublishInboundMessage(ctx context.Context, msg InboundMessage) error
	PublishReplyTask(ctx context.Context, task ReplyTask) error
}

// Embedder encodes texts into fixed-dimension vectors.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float64, error)
}
