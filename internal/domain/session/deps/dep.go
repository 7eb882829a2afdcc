package deps

import (
	"context"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// ProtocolClient is one live MTProto session as the session layer sees it
type ProtocolClient interface {
	// Connect dials Telegram and restores the stored session. Returns
	// domain.ErrNotAuthorized when the stored session has been revoked.
	Connect(ctx context.Context) error

	// Disconnect stops the session gracefully
	Disconnect(ctx context.Context) error

	// IsConnected reports whether the session is currently live
	IsConnected() bool

	// SendReply sends a text reply to a message in a chat the session has
	// seen and returns the id of the sent message
	SendReply(ctx context.Context, chatID, messageID int64, text string) (int64, error)
}

// ClientFactory builds protocol clients from stored credentials
type ClientFactory interface {
	NewClient(cred domain.Credential, handler func(domain.Event)) (ProtocolClient, error)
}
