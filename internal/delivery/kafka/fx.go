package kafka

import (
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// PublisherModule provides the shared event publisher for fx DI
var PublisherModule = fx.Module("publisher",
	fx.Provide(
		NewPublisher,
		// Provide publisher interfaces for the domain layers
		func(p *Publisher) domain.RegistrationPublisher {
			return p
		},
		func(p *Publisher) domain.ClientStatusPublisher {
			return p
		},
		func(p *Publisher) domain.MessagePublisher {
			return p
		},
	),
)

// RelayModule provides the relay topic handler for fx DI
var RelayModule = fx.Module("relay-delivery",
	fx.Provide(NewRelayHandler),
)

// WorkerModule provides the worker topic handler for fx DI
var WorkerModule = fx.Module("worker-delivery",
	fx.Provide(NewWorkerHandler),
)
