package deps

import "context"

// AuthClient is a temporary Telegram client driving one sign-in handshake
type AuthClient interface {
	// SendCode sends a verification code and returns the phone code hash
	SendCode(ctx context.Context, phone string) (string, error)

	// SignIn confirms the code. Returns domain.ErrPasswordRequired when the
	// account has a two-factor cloud password.
	SignIn(ctx context.Context, phone, code, codeHash string) error

	// Password completes sign-in with the two-factor cloud password
	Password(ctx context.Context, password string) error

	// ExportSession returns the authorized session as a storable token
	ExportSession(ctx context.Context) (string, error)

	// Close disconnects the temporary client
	Close(ctx context.Context) error
}

// AuthClientFactory builds connected temporary auth clients
type AuthClientFactory interface {
	NewAuthClient(ctx context.Context, apiID int, apiHash string) (AuthClient, error)
}
