package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	registrationdeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/registration/deps"
	sessiondeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
)

// Factory builds protocol clients for the session and registration layers
type Factory struct {
	repo   domain.CredentialRepository
	logger zerolog.Logger
}

// NewFactory creates a client factory
func NewFactory(repo domain.CredentialRepository, logger zerolog.Logger) *Factory {
	return &Factory{repo: repo, logger: logger}
}

// NewClient builds a session client for a registered credential
func (f *Factory) NewClient(cred domain.Credential, handler func(domain.Event)) (sessiondeps.ProtocolClient, error) {
	return NewClient(ClientConfig{
		Credential: cred,
		Repo:       f.repo,
		Handler:    EventHandler(handler),
		Logger:     f.logger,
	})
}

// NewAuthClient builds a connected temporary client for one sign-in handshake
func (f *Factory) NewAuthClient(ctx context.Context, apiID int, apiHash string) (registrationdeps.AuthClient, error) {
	return NewAuthClient(ctx, apiID, apiHash, f.logger)
}

var (
	_ sessiondeps.ClientFactory          = (*Factory)(nil)
	_ registrationdeps.AuthClientFactory = (*Factory)(nil)
)
