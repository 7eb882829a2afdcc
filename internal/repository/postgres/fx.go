package postgres

import "go.uber.org/fx"

// Module provides the PostgreSQL repositories for fx DI
var Module = fx.Module("repositories",
	fx.Provide(
		NewCredentialRepository,
		NewChatRepository,
		NewTopicRepository,
		NewThreadRepository,
	),
)
