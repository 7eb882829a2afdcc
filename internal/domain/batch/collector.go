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

// errCollectorClosed signals that the collector already flushed and the
// caller must obtain a fresh one
var errCollectorClosed = errors.New("collector closed")

// FlushFunc consumes one completed batch
type FlushFunc func(ctx context.Context, key domain.PartitionKey, batch []domain.InboundMessage) error

// Collector accumulates messages of one (user, chat) pair until either the
// size limit is reached or the time window since the first message elapses.
// A collector flushes exactly once and is then discarded.
type Collector struct {
	key    domain.PartitionKey
	size   int
	window time.Duration
	flush  FlushFunc
	onDone func(c *Collector)

	mu     sync.Mutex
	buffer []domain.InboundMessage
	timer  *time.Timer
	closed bool
	done   chan struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewCollector creates an empty collector. The window timer starts with the
// first message, not at construction.
func NewCollector(
	key domain.PartitionKey,
	size int,
	window time.Duration,
	flush FlushFunc,
	onDone func(c *Collector),
	logger zerolog.Logger,
) *Collector {
	return &Collector{
		key:    key,
		size:   size,
		window: window,
		flush:  flush,
		onDone: onDone,
		buffer: make([]domain.InboundMessage, 0, size),
		done:   make(chan struct{}),
		logger: logger.With().
			Str("component", "batch_collector").
			Int64("user_id", key.UserID).
			Int64("chat_id", key.ChatID).
			Logger(),
		metrics: metrics.GetDefaultMetrics(),
	}
}

// Add appends a message. When the batch fills up, the flush runs on the
// caller and its error propagates, so a failed size-triggered flush leaves
// the broker message unacknowledged.
func (c *Collector) Add(ctx context.Context, msg domain.InboundMessage) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return errCollectorClosed
	}

	c.buffer = append(c.buffer, msg)

	if len(c.buffer) == 1 {
		// First message arms the window timer
		c.timer = time.AfterFunc(c.window, c.flushOnTimer)
	}

	if len(c.buffer) < c.size {
		c.mu.Unlock()
		return nil
	}

	batch := c.takeLocked()
	c.mu.Unlock()

	return c.flushBatch(ctx, batch, "size")
}

// flushOnTimer fires when the window since the first message elapses.
// Errors here have no broker message to fail, so they are only logged.
func (c *Collector) flushOnTimer() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	batch := c.takeLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.window)
	defer cancel()

	if err := c.flushBatch(ctx, batch, "time"); err != nil {
		c.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("time-triggered flush failed, batch dropped")
	}
}

// FlushNow drains whatever the collector holds, used on shutdown
func (c *Collector) FlushNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	batch := c.takeLocked()
	c.mu.Unlock()

	if len(batch) == 0 {
		c.onDone(c)
		close(c.done)
		return nil
	}

	return c.flushBatch(ctx, batch, "shutdown")
}

// flushed is closed once the collector's single flush has completed and the
// collector was removed from its manager
func (c *Collector) flushed() <-chan struct{} {
	return c.done
}

// takeLocked swaps the buffer out and marks the collector closed.
// Caller must hold mu.
func (c *Collector) takeLocked() []domain.InboundMessage {
	batch := c.buffer
	c.buffer = nil
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return batch
}

func (c *Collector) flushBatch(ctx context.Context, batch []domain.InboundMessage, trigger string) error {
	// LIFO order removes the collector from the manager before waiters wake
	defer close(c.done)
	defer c.onDone(c)

	c.metrics.BatchesFlushed.WithLabelValues(trigger).Inc()
	c.metrics.BatchSizeObserved.Observe(float64(len(batch)))

	c.logger.Debug().
		Int("batch_size", len(batch)).
		Str("trigger", trigger).
		Msg("flushing batch")

	if err := c.flush(ctx, c.key, batch); err != nil {
		c.metrics.BatchFlushErrors.Inc()
		return err
	}

	return nil
}
