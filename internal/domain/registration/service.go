package registration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/registration/deps"
	"github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/metrics"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

const closeTimeout = 10 * time.Second

// ConfirmResult is the outcome of a code confirmation attempt
type ConfirmResult int

const (
	// ConfirmFailed means the code was rejected or the handshake expired
	ConfirmFailed ConfirmResult = iota
	// ConfirmSuccess means the account is signed in and registered
	ConfirmSuccess
	// ConfirmNeedsPassword means the code was accepted but the account has
	// a two-factor cloud password that must be confirmed next
	ConfirmNeedsPassword
)

// Service drives the multi-step sign-in handshake. Each in-flight handshake
// holds a temporary connected client and an expiring Redis entry; both are
// discarded when the handshake completes or times out.
type Service struct {
	factory deps.AuthClientFactory
	pending domain.PendingAuthStore
	creds   domain.CredentialRepository
	status  domain.RegistrationPublisher

	ttl time.Duration

	mu      sync.Mutex
	clients map[int64]deps.AuthClient
	timers  map[int64]*time.Timer

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a registration service
func NewService(
	factory deps.AuthClientFactory,
	pending domain.PendingAuthStore,
	creds domain.CredentialRepository,
	status domain.RegistrationPublisher,
	ttl time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		factory: factory,
		pending: pending,
		creds:   creds,
		status:  status,
		ttl:     ttl,
		clients: make(map[int64]deps.AuthClient),
		timers:  make(map[int64]*time.Timer),
		logger:  logger.With().Str("component", "registration").Logger(),
		metrics: metrics.GetDefaultMetrics(),
	}
}

// Initiate starts a sign-in handshake: connects a temporary client with the
// user's API credentials and asks Telegram to send a verification code.
// A repeated initiate replaces any handshake already in flight.
func (s *Service) Initiate(ctx context.Context, userID int64, apiID int, apiHash, phone string) error {
	s.metrics.RegistrationsStarted.Inc()

	// Restarting the handshake discards the previous temp client
	s.removeClient(userID)

	client, err := s.factory.NewAuthClient(ctx, apiID, apiHash)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to connect auth client")
		s.publishError(ctx, userID, domain.ErrorCodeClientError, "failed to connect to Telegram")
		return pkgerrors.NewProtocolClientError("failed to connect auth client", err)
	}

	codeHash, err := client.SendCode(ctx, phone)
	if err != nil {
		s.closeClient(client)
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to send verification code")
		s.publishError(ctx, userID, domain.ErrorCodeClientError, "failed to send verification code")
		return pkgerrors.NewProtocolClientError("failed to send verification code", err)
	}

	auth := domain.PendingAuth{
		UserID:        userID,
		HandshakeID:   uuid.New().String(),
		Phone:         phone,
		APIID:         apiID,
		APIHash:       apiHash,
		PhoneCodeHash: codeHash,
	}

	if err := s.pending.Put(ctx, auth, s.ttl); err != nil {
		s.closeClient(client)
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to store pending auth")
		s.publishError(ctx, userID, domain.ErrorCodeClientError, "failed to store handshake state")
		return err
	}

	s.trackClient(userID, client)

	s.logger.Info().
		Int64("user_id", userID).
		Str("handshake_id", auth.HandshakeID).
		Msg("registration initiated, code sent")
	return s.publishStatus(ctx, userID, domain.RegistrationStatusCodeSent)
}

// ConfirmCode confirms the verification code the user received. Returns
// ConfirmNeedsPassword when the account requires a two-factor password.
func (s *Service) ConfirmCode(ctx context.Context, userID int64, code string) (ConfirmResult, error) {
	auth, client, err := s.handshake(ctx, userID)
	if err != nil {
		return ConfirmFailed, err
	}

	if err := client.SignIn(ctx, auth.Phone, code, auth.PhoneCodeHash); err != nil {
		if errors.Is(err, domain.ErrPasswordRequired) {
			s.logger.Info().Int64("user_id", userID).Msg("two-factor password required")
			if pubErr := s.publishStatus(ctx, userID, domain.RegistrationStatusPasswordRequired); pubErr != nil {
				return ConfirmNeedsPassword, pubErr
			}
			return ConfirmNeedsPassword, nil
		}

		// Keep the handshake alive so the user can retry until the TTL
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("sign in failed")
		s.publishError(ctx, userID, domain.ErrorCodeSignInFailed, "verification code rejected")
		return ConfirmFailed, err
	}

	if err := s.complete(ctx, userID, auth, client); err != nil {
		return ConfirmFailed, err
	}
	return ConfirmSuccess, nil
}

// ConfirmPassword completes sign-in with the two-factor cloud password
func (s *Service) ConfirmPassword(ctx context.Context, userID int64, password string) error {
	auth, client, err := s.handshake(ctx, userID)
	if err != nil {
		return err
	}

	if err := client.Password(ctx, password); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("password sign in failed")
		s.publishError(ctx, userID, domain.ErrorCodeSignInFailed, "password rejected")
		return err
	}

	return s.complete(ctx, userID, auth, client)
}

// Close discards every in-flight handshake, used on shutdown
func (s *Service) Close() {
	s.mu.Lock()
	clients := make([]deps.AuthClient, 0, len(s.clients))
	for id, client := range s.clients {
		clients = append(clients, client)
		if timer, ok := s.timers[id]; ok {
			timer.Stop()
		}
		delete(s.clients, id)
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, client := range clients {
		s.closeClient(client)
	}
}

// handshake resolves the pending auth entry and temp client of a user.
// Either one missing means the handshake expired.
func (s *Service) handshake(ctx context.Context, userID int64) (*domain.PendingAuth, deps.AuthClient, error) {
	auth, err := s.pending.Get(ctx, userID)
	if err != nil {
		var notFound *pkgerrors.NotFoundError
		if errors.As(err, &notFound) {
			s.removeClient(userID)
			s.publishError(ctx, userID, domain.ErrorCodeAuthDataExpired, "registration expired, start over")
			return nil, nil, pkgerrors.NewAuthDataExpiredErrorf("pending auth expired for user %d", userID)
		}
		return nil, nil, err
	}

	s.mu.Lock()
	client, ok := s.clients[userID]
	s.mu.Unlock()

	if !ok {
		s.publishError(ctx, userID, domain.ErrorCodeAuthDataExpired, "registration expired, start over")
		return nil, nil, pkgerrors.NewAuthDataExpiredErrorf("auth client expired for user %d", userID)
	}

	return auth, client, nil
}

func (s *Service) complete(ctx context.Context, userID int64, auth *domain.PendingAuth, client deps.AuthClient) error {
	token, err := client.ExportSession(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to export session")
		s.publishError(ctx, userID, domain.ErrorCodeClientError, "failed to export session")
		return err
	}

	cred := &domain.Credential{
		UserID:       userID,
		APIID:        auth.APIID,
		APIHash:      auth.APIHash,
		Phone:        auth.Phone,
		SessionToken: token,
	}

	if err := s.creds.Save(ctx, cred); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to persist credential")
		s.publishError(ctx, userID, domain.ErrorCodeClientError, "failed to persist credential")
		return err
	}

	if err := s.pending.Delete(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to delete pending auth")
	}

	s.removeClient(userID)
	s.metrics.RegistrationsCompleted.Inc()

	s.logger.Info().
		Int64("user_id", userID).
		Str("handshake_id", auth.HandshakeID).
		Msg("registration completed")
	return s.publishStatus(ctx, userID, domain.RegistrationStatusRegistered)
}

// trackClient stores the temp client with an expiry timer matching the TTL
// of the pending auth entry
func (s *Service) trackClient(userID int64, client deps.AuthClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[userID] = client
	s.timers[userID] = time.AfterFunc(s.ttl, func() {
		s.expireClient(userID, client)
	})
}

// expireClient force-disconnects a temp client whose handshake timed out
func (s *Service) expireClient(userID int64, client deps.AuthClient) {
	s.mu.Lock()
	current, ok := s.clients[userID]
	if !ok || current != client {
		// A newer handshake replaced this one
		s.mu.Unlock()
		return
	}
	delete(s.clients, userID)
	delete(s.timers, userID)
	s.mu.Unlock()

	s.logger.Info().Int64("user_id", userID).Msg("handshake expired, disconnecting auth client")
	s.closeClient(client)
}

// removeClient discards the tracked temp client of a user, if any
func (s *Service) removeClient(userID int64) {
	s.mu.Lock()
	client, ok := s.clients[userID]
	if ok {
		if timer, timerOk := s.timers[userID]; timerOk {
			timer.Stop()
		}
		delete(s.clients, userID)
		delete(s.timers, userID)
	}
	s.mu.Unlock()

	if ok {
		s.closeClient(client)
	}
}

func (s *Service) closeClient(client deps.AuthClient) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := client.Close(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close auth client")
	}
}

func (s *Service) publishStatus(ctx context.Context, userID int64, status string) error {
	err := s.status.PublishRegistrationStatus(ctx, domain.RegistrationStatus{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("status", status).Msg("failed to publish registration status")
	}
	return err
}

func (s *Service) publishError(ctx context.Context, userID int64, code, message string) {
	s.metrics.RegistrationErrors.WithLabelValues(code).Inc()

	err := s.status.PublishRegistrationStatus(ctx, domain.RegistrationStatus{
		UserID: userID,
		Status: domain.RegistrationStatusError,
		Error:  &domain.StatusError{Code: code, Message: message},
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("code", code).Msg("failed to publish registration error")
	}
}
