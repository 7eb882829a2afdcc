package telegram

import (
	"go.uber.org/fx"

	registrationdeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/registration/deps"
	sessiondeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
)

// Module provides Telegram client factories for fx DI
var Module = fx.Module("telegram",
	fx.Provide(
		NewFactory,
		// Provide factory interfaces for the session and registration layers
		func(f *Factory) sessiondeps.ClientFactory {
			return f
		},
		func(f *Factory) registrationdeps.AuthClientFactory {
			return f
		},
	),
)
