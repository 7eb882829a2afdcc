package registration

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/registration/deps"
)

// Module provides registration components for fx DI
var Module = fx.Module("registration",
	fx.Provide(NewServiceFx),
)

// NewServiceFx creates the registration service from config
func NewServiceFx(
	lc fx.Lifecycle,
	factory deps.AuthClientFactory,
	pending domain.PendingAuthStore,
	creds domain.CredentialRepository,
	status domain.RegistrationPublisher,
	cfg *config.SessionConfig,
	logger zerolog.Logger,
) *Service {
	service := NewService(factory, pending, creds, status, cfg.PendingAuthTTL, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			service.Close()
			return nil
		},
	})

	return service
}
