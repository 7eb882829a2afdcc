package domain

import "time"

// PartitionKey groups inbound messages into one batch per (user, chat) pair.
type PartitionKey struct {
	UserID int64
	ChatID int64
}

// InboundMessage is the payload of the message.process topic: one raw message
// observed by a user's session and accepted by its allow-list.
type InboundMessage struct {
	TelegramMessageID int64     `json:"telegram_message_id"`
	UserID            int64     `json:"user_id"`
	ChatID            int64     `json:"chat_id"`
	Text              string    `json:"text"`
	SenderUsername    string    `json:"sender_username"`
	SenderID          int64     `json:"sender_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Key returns the batching partition key of the message.
func (m InboundMessage) Key() PartitionKey {
	return PartitionKey{UserID: m.UserID, ChatID: m.ChatID}
}

// ReplyTask is the payload of the message.answer topic: a message that
// matched a topic with enough confidence to draft a reply for.
type ReplyTask struct {
	UserID            int64   `json:"user_id"`
	ChatID            int64   `json:"chat_id"`
	TelegramMessageID int64   `json:"telegram_message_id"`
	Content           string  `json:"content"`
	TopicID           int64   `json:"topic_id"`
	Score             float64 `json:"score"`
}

// Credential is the durable per-user record created on successful
// registration and read back at boot to rehydrate sessions.
type Credential struct {
	UserID       int64
	APIID        int
	APIHash      string
	Phone        string
	SessionToken string
}

// PendingAuth is the ephemeral registration handshake state. It lives in an
// expiring key-value entry; absence means the handshake has expired.
// HandshakeID correlates the log lines of one sign-in attempt.
type PendingAuth struct {
	UserID        int64
	HandshakeID   string
	Phone         string
	APIID         int
	APIHash       string
	PhoneCodeHash string
}

// Topic is a user-defined category whose name and description are encoded
// into the vector that incoming messages are scored against.
type Topic struct {
	ID          int64
	Name        string
	Description string
}

// Text returns the string that is embedded for this topic.
func (t Topic) Text() string {
	return t.Name + " " + t.Description
}

// Thread is an existing reply conversation rooted at a matched message.
// A reply to any message of a thread continues it with the same topic.
type Thread struct {
	ID      int64
	ChatID  int64
	TopicID int64
	Score   float64
}

// Event is one inbound message as seen by a session before filtering.
// ReplyToMessageID is zero when the message is not a reply.
type Event struct {
	ChatID           int64
	MessageID        int64
	SenderID         int64
	SenderUsername   string
	Text             string
	ReplyToMessageID int64
	CreatedAt        time.Time
}

// Client connection status events published on client.status.
const (
	ClientEventDisconnected = "disconnected"
	ClientEventReconnected  = "reconnected"
	ClientEventUnauthorized = "unauthorized"
)

// Registration statuses published on registration.status.
const (
	RegistrationStatusCodeSent         = "code_sent"
	RegistrationStatusPasswordRequired = "password_required"
	RegistrationStatusRegistered       = "registered"
	RegistrationStatusError            = "error"
)

// Machine-readable error codes carried in registration.status error payloads.
const (
	ErrorCodeAuthDataExpired = "auth_data_expired"
	ErrorCodeClientError     = "client_error"
	ErrorCodeSignInFailed    = "sign_in_failed"
)
