package matcher

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/batch"
)

// Module provides topic matching components for fx DI
var Module = fx.Module("matcher",
	fx.Provide(
		NewMatcherFx,
		// The matcher consumes the batches the collector manager flushes
		func(m *Matcher) batch.FlushFunc {
			return m.ProcessBatch
		},
	),
)

// NewMatcherFx creates the topic matcher from config
func NewMatcherFx(
	topics domain.TopicRepository,
	embedder domain.Embedder,
	publisher domain.MessagePublisher,
	cfg *config.EmbeddingConfig,
	logger zerolog.Logger,
) *Matcher {
	return NewMatcher(topics, embedder, publisher, cfg.SimilarityThreshold, logger)
}
