package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
)

// Manager routes inbound messages to one collector per (user, chat) pair.
// Collectors are created on first message and removed once they flush.
type Manager struct {
	mu         sync.Mutex
	collectors map[domain.PartitionKey]*Collector

	size   int
	window time.Duration
	flush  FlushFunc

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewManager creates a collector manager
func NewManager(size int, window time.Duration, flush FlushFunc, logger zerolog.Logger) *Manager {
	return &Manager{
		collectors: make(map[domain.PartitionKey]*Collector),
		size:       size,
		window:     window,
		flush:      flush,
		logger:     logger.With().Str("component", "batch_manager").Logger(),
		metrics:    metrics.GetDefaultMetrics(),
	}
}

// Add routes a message into the collector of its partition key. The error of
// a size-triggered flush propagates to the caller.
func (m *Manager) Add(ctx context.Context, msg domain.InboundMessage) error {
	key := msg.Key()

	for {
		collector := m.getOrCreate(key)

		err := collector.Add(ctx, msg)
		if errors.Is(err, errCollectorClosed) {
			// The collector flushed between lookup and add. Wait out its
			// in-flight flush, then try again with a fresh one.
			select {
			case <-collector.flushed():
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return err
	}
}

func (m *Manager) getOrCreate(key domain.PartitionKey) *Collector {
	m.mu.Lock()
	defer m.mu.Unlock()

	if collector, ok := m.collectors[key]; ok {
		return collector
	}

	collector := NewCollector(key, m.size, m.window, m.flush, m.remove, m.logger)
	m.collectors[key] = collector
	m.metrics.ActiveCollectors.Inc()

	m.logger.Debug().
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Msg("collector opened")

	return collector
}

// remove drops a collector after it flushed. The instance check keeps a
// flushed collector from evicting its replacement.
func (m *Manager) remove(c *Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.collectors[c.key]; ok && current == c {
		delete(m.collectors, c.key)
		m.metrics.ActiveCollectors.Dec()
	}
}

// Close flushes every open collector, used on shutdown
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	collectors := make([]*Collector, 0, len(m.collectors))
	for _, c := range m.collectors {
		collectors = append(collectors, c)
	}
	m.mu.Unlock()

	var lastErr error
	for _, c := range collectors {
		if err := c.FlushNow(ctx); err != nil {
			m.logger.Error().Err(err).Msg("shutdown flush failed")
			lastErr = err
		}
	}

	m.logger.Info().Int("collectors", len(collectors)).Msg("batch manager closed")
	return lastErr
}
