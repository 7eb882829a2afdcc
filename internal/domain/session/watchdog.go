package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
)

// Watchdog polls every registered session and publishes exactly one
// disconnected event per outage and one reconnected event per recovery.
// State transitions are recorded only after the event reached the bus, so a
// failed publish is retried on the next tick.
type Watchdog struct {
	registry *Registry
	status   domain.ClientStatusPublisher

	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// sessions currently known to be down, keyed by user id
	disconnected map[int64]struct{}

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewWatchdog creates a watchdog over the registry
func NewWatchdog(
	registry *Registry,
	status domain.ClientStatusPublisher,
	interval time.Duration,
	logger zerolog.Logger,
) *Watchdog {
	return &Watchdog{
		registry:     registry,
		status:       status,
		interval:     interval,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		disconnected: make(map[int64]struct{}),
		logger:       logger.With().Str("component", "watchdog").Logger(),
	}
}

// Start begins the polling loop in a goroutine
func (w *Watchdog) Start() {
	if w.metrics == nil {
		w.metrics = metrics.GetDefaultMetrics()
	}

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info().Dur("interval", w.interval).Msg("watchdog started")

		for {
			select {
			case <-w.stopChan:
				w.logger.Info().Msg("watchdog stopped")
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to finish
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.done
}

func (w *Watchdog) check() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	sessions := w.registry.Snapshot()

	// Forget state for sessions that were stopped
	for id := range w.disconnected {
		if _, ok := sessions[id]; !ok {
			delete(w.disconnected, id)
		}
	}

	for id, wrapper := range sessions {
		connected := wrapper.IsConnected()
		_, wasDown := w.disconnected[id]

		switch {
		case !connected && !wasDown:
			if err := w.status.PublishClientStatus(ctx, id, domain.ClientEventDisconnected); err != nil {
				w.logger.Error().Err(err).Int64("user_id", id).Msg("failed to publish disconnect, will retry")
				continue
			}
			w.disconnected[id] = struct{}{}
			w.metrics.WatchdogDisconnects.Inc()
			w.logger.Warn().Int64("user_id", id).Msg("session disconnected")

		case connected && wasDown:
			if err := w.status.PublishClientStatus(ctx, id, domain.ClientEventReconnected); err != nil {
				w.logger.Error().Err(err).Int64("user_id", id).Msg("failed to publish reconnect, will retry")
				continue
			}
			delete(w.disconnected, id)
			w.metrics.WatchdogReconnects.Inc()
			w.logger.Info().Int64("user_id", id).Msg("session reconnected")
		}
	}
}
