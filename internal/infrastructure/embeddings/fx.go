package embeddings

import (
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// Module provides embedding components for fx dependency injection
var Module = fx.Module("embeddings",
	fx.Provide(
		NewClient,
		// Provide Embedder interface for the topic matcher
		func(c *Client) domain.Embedder {
			return c
		},
	),
)
