package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// Registry owns the map of live sessions. A session enters the map only
// after its wrapper connected successfully and leaves it before teardown, so
// concurrent readers never observe a half-started session.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Wrapper
	starting map[int64]*startAttempt

	factory   deps.ClientFactory
	creds     domain.CredentialRepository
	chats     domain.ChatRepository
	threads   domain.ThreadRepository
	publisher domain.MessagePublisher
	status    domain.ClientStatusPublisher

	cfg     *config.SessionConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// startAttempt is one in-flight connect handshake. Waiters read wrapper and
// err only after done is closed.
type startAttempt struct {
	done    chan struct{}
	wrapper *Wrapper
	err     error
}

// NewRegistry creates an empty session registry
func NewRegistry(
	factory deps.ClientFactory,
	creds domain.CredentialRepository,
	chats domain.ChatRepository,
	threads domain.ThreadRepository,
	publisher domain.MessagePublisher,
	status domain.ClientStatusPublisher,
	cfg *config.SessionConfig,
	logger zerolog.Logger,
) *Registry {
	return &Registry{
		sessions:  make(map[int64]*Wrapper),
		starting:  make(map[int64]*startAttempt),
		factory:   factory,
		creds:     creds,
		chats:     chats,
		threads:   threads,
		publisher: publisher,
		status:    status,
		cfg:       cfg,
		logger:    logger.With().Str("component", "session_registry").Logger(),
		metrics:   metrics.GetDefaultMetrics(),
	}
}

// Start brings up the session for a registered user. Starting an already
// running session returns the existing wrapper. A failed start leaves no
// trace in the registry.
func (r *Registry) Start(ctx context.Context, userID int64) (*Wrapper, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		r.logger.Debug().Int64("user_id", userID).Msg("session already running")
		return existing, nil
	}
	if attempt, ok := r.starting[userID]; ok {
		r.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.wrapper, attempt.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	attempt := &startAttempt{done: make(chan struct{})}
	r.starting[userID] = attempt
	r.mu.Unlock()

	// The handshake runs without the registry lock so readers and other
	// users' starts are not stalled behind it
	wrapper, err := r.connect(ctx, userID)

	r.mu.Lock()
	delete(r.starting, userID)
	if err == nil {
		r.sessions[userID] = wrapper
		r.metrics.ActiveSessions.Inc()
	}
	r.mu.Unlock()

	attempt.wrapper, attempt.err = wrapper, err
	close(attempt.done)

	if err != nil {
		return nil, err
	}

	r.logger.Info().Int64("user_id", userID).Msg("session registered")
	return wrapper, nil
}

func (r *Registry) connect(ctx context.Context, userID int64) (*Wrapper, error) {
	r.metrics.SessionStartsTotal.Inc()

	cred, err := r.creds.GetByUserID(ctx, userID)
	if err != nil {
		r.metrics.SessionStartErrors.Inc()
		return nil, err
	}

	if cred.SessionToken == "" {
		r.metrics.SessionStartErrors.Inc()
		r.reportUnauthorized(ctx, userID)
		return nil, domain.ErrNotAuthorized
	}

	wrapper, err := NewWrapper(
		userID,
		r.factory,
		*cred,
		r.chats,
		r.threads,
		r.publisher,
		r.cfg.ChatRefreshInterval,
		r.logger,
	)
	if err != nil {
		r.metrics.SessionStartErrors.Inc()
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()

	if err := wrapper.Start(connectCtx); err != nil {
		r.metrics.SessionStartErrors.Inc()
		if errors.Is(err, domain.ErrNotAuthorized) {
			r.reportUnauthorized(ctx, userID)
		}
		return nil, err
	}

	return wrapper, nil
}

// Stop tears down the session of a user. Returns a ClientNotFoundError when
// no session is running for them.
func (r *Registry) Stop(ctx context.Context, userID int64) error {
	r.mu.Lock()
	wrapper, ok := r.sessions[userID]
	if ok {
		// Remove before teardown so no caller can reach a dying session
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return pkgerrors.NewClientNotFoundErrorf("no running session for user %d", userID)
	}

	r.metrics.ActiveSessions.Dec()
	r.metrics.SessionStopsTotal.Inc()

	if err := wrapper.Stop(ctx); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Msg("session stopped with error")
		return err
	}

	r.logger.Info().Int64("user_id", userID).Msg("session stopped")
	return nil
}

// Get returns the running session of a user or a ClientNotFoundError
func (r *Registry) Get(userID int64) (*Wrapper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wrapper, ok := r.sessions[userID]
	if !ok {
		return nil, pkgerrors.NewClientNotFoundErrorf("no running session for user %d", userID)
	}
	return wrapper, nil
}

// Snapshot returns the current sessions keyed by user id. The map is a copy;
// the wrappers are shared.
func (r *Registry) Snapshot() map[int64]*Wrapper {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[int64]*Wrapper, len(r.sessions))
	for id, w := range r.sessions {
		snapshot[id] = w
	}
	return snapshot
}

// StartAll rehydrates sessions for every stored credential at boot.
// Credentials without a session token are skipped; individual failures are
// logged and do not stop the rest.
func (r *Registry) StartAll(ctx context.Context) {
	creds, err := r.creds.All(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load credentials for rehydration")
		return
	}

	started := 0
	for _, cred := range creds {
		if cred.SessionToken == "" {
			r.logger.Debug().Int64("user_id", cred.UserID).Msg("skipping credential without session token")
			continue
		}

		if _, err := r.Start(ctx, cred.UserID); err != nil {
			r.logger.Error().Err(err).Int64("user_id", cred.UserID).Msg("failed to rehydrate session")
			continue
		}
		started++
	}

	r.logger.Info().
		Int("credentials", len(creds)).
		Int("started", started).
		Msg("session rehydration completed")
}

// StopAll tears down every running session, used on shutdown
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	wrappers := make(map[int64]*Wrapper, len(r.sessions))
	for id, w := range r.sessions {
		wrappers[id] = w
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for id, w := range wrappers {
		if err := w.Stop(ctx); err != nil {
			r.logger.Warn().Err(err).Int64("user_id", id).Msg("session stopped with error")
		}
		r.metrics.ActiveSessions.Dec()
	}

	r.logger.Info().Int("stopped", len(wrappers)).Msg("all sessions stopped")
}

func (r *Registry) reportUnauthorized(ctx context.Context, userID int64) {
	r.metrics.UnauthorizedSessions.Inc()

	if err := r.status.PublishClientStatus(ctx, userID, domain.ClientEventUnauthorized); err != nil {
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to publish unauthorized status")
	}
}
