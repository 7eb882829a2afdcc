package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
)

// topicVector is one topic with its precomputed embedding
type topicVector struct {
	topic domain.Topic
	vec   []float64
}

// Matcher scores batches of messages against the topic set of their chat and
// emits a reply task for every message whose best topic clears the
// similarity threshold.
type Matcher struct {
	topics    domain.TopicRepository
	embedder  domain.Embedder
	publisher domain.MessagePublisher
	threshold float64

	// gens counts invalidations per key so a fetch that started before an
	// invalidate cannot re-cache the stale topic set
	cacheMu sync.RWMutex
	cache   map[domain.PartitionKey][]topicVector
	gens    map[domain.PartitionKey]uint64

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewMatcher creates a topic matcher
func NewMatcher(
	topics domain.TopicRepository,
	embedder domain.Embedder,
	publisher domain.MessagePublisher,
	threshold float64,
	logger zerolog.Logger,
) *Matcher {
	return &Matcher{
		topics:    topics,
		embedder:  embedder,
		publisher: publisher,
		threshold: threshold,
		cache:     make(map[domain.PartitionKey][]topicVector),
		gens:      make(map[domain.PartitionKey]uint64),
		logger:    logger.With().Str("component", "matcher").Logger(),
		metrics:   metrics.GetDefaultMetrics(),
	}
}

// ProcessBatch scores one flushed batch. A returned error means the batch
// was not fully processed and the caller may have it redelivered.
func (m *Matcher) ProcessBatch(ctx context.Context, key domain.PartitionKey, batch []domain.InboundMessage) error {
	if len(batch) == 0 {
		return nil
	}

	topicVectors, err := m.topicVectors(ctx, key)
	if err != nil {
		return err
	}

	if len(topicVectors) == 0 {
		// A chat without topics matches nothing
		m.metrics.MessagesDiscarded.Add(float64(len(batch)))
		m.logger.Debug().
			Int64("user_id", key.UserID).
			Int64("chat_id", key.ChatID).
			Int("batch_size", len(batch)).
			Msg("no topics bound to chat, batch discarded")
		return nil
	}

	texts := make([]string, len(batch))
	for i, msg := range batch {
		texts[i] = msg.Text
	}

	messageVectors, err := m.embedder.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(messageVectors) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d messages", len(messageVectors), len(batch))
	}

	for i, msg := range batch {
		best, score := bestTopic(topicVectors, messageVectors[i])

		if best == nil || score < m.threshold {
			m.metrics.MessagesDiscarded.Inc()
			continue
		}

		task := domain.ReplyTask{
			UserID:            msg.UserID,
			ChatID:            msg.ChatID,
			TelegramMessageID: msg.TelegramMessageID,
			Content:           msg.Text,
			TopicID:           best.ID,
			Score:             score,
		}

		if err := m.publisher.PublishReplyTask(ctx, task); err != nil {
			return fmt.Errorf("failed to publish reply task: %w", err)
		}

		m.metrics.ReplyTasksEmitted.Inc()
		m.logger.Debug().
			Int64("user_id", msg.UserID).
			Int64("chat_id", msg.ChatID).
			Int64("topic_id", best.ID).
			Float64("score", score).
			Msg("message matched topic")
	}

	return nil
}

// Invalidate drops the cached topic vectors of a (user, chat) pair so the
// next batch re-reads and re-embeds them
func (m *Matcher) Invalidate(key domain.PartitionKey) {
	m.cacheMu.Lock()
	delete(m.cache, key)
	m.gens[key]++
	m.cacheMu.Unlock()

	m.logger.Debug().
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Msg("topic vectors invalidated")
}

// topicVectors returns the cached topic embeddings of a chat, computing
// them on first use
func (m *Matcher) topicVectors(ctx context.Context, key domain.PartitionKey) ([]topicVector, error) {
	m.cacheMu.RLock()
	cached, ok := m.cache[key]
	gen := m.gens[key]
	m.cacheMu.RUnlock()

	if ok {
		m.metrics.TopicCacheHits.Inc()
		return cached, nil
	}

	m.metrics.TopicCacheMisses.Inc()

	topics, err := m.topics.GetTopics(ctx, key.UserID, key.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}

	vectors := make([]topicVector, 0, len(topics))
	if len(topics) > 0 {
		texts := make([]string, len(topics))
		for i, topic := range topics {
			texts[i] = topic.Text()
		}

		embedded, err := m.embedder.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed topics: %w", err)
		}
		if len(embedded) != len(topics) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d topics", len(embedded), len(topics))
		}

		for i, topic := range topics {
			vectors = append(vectors, topicVector{topic: topic, vec: embedded[i]})
		}
	}

	// Cache only if no invalidation landed while we were fetching; the
	// computed vectors are still valid for this batch either way
	m.cacheMu.Lock()
	if m.gens[key] == gen {
		m.cache[key] = vectors
	}
	m.cacheMu.Unlock()

	m.logger.Debug().
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Int("topics", len(vectors)).
		Msg("topic vectors cached")

	return vectors, nil
}

// bestTopic returns the highest-scoring topic. Topics arrive ordered by id
// and a strict comparison keeps the first of equal scores, so ties go to the
// lowest topic id.
func bestTopic(topics []topicVector, messageVec []float64) (*domain.Topic, float64) {
	var best *domain.Topic
	bestScore := 0.0

	for i := range topics {
		score := cosineSimilarity(topics[i].vec, messageVec)
		if best == nil || score > bestScore {
			best = &topics[i].topic
			bestScore = score
		}
	}

	return best, bestScore
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// zero when either has no magnitude
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}
