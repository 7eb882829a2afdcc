package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// AuthClient is a temporary Telegram client used only for the registration
// handshake. It holds its session in memory; once sign-in completes the
// session is exported into a token and the client is thrown away.
type AuthClient struct {
	client  *telegram.Client
	storage *session.StorageMemory

	cancelFunc context.CancelFunc
	runDone    chan struct{}

	logger zerolog.Logger
}

// NewAuthClient creates and connects a temporary client with the user's API
// credentials. Close must be called to release the connection.
func NewAuthClient(ctx context.Context, apiID int, apiHash string, logger zerolog.Logger) (*AuthClient, error) {
	storage := &session.StorageMemory{}

	c := &AuthClient{
		storage: storage,
		logger:  logger.With().Str("component", "auth_client").Logger(),
	}

	c.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: storage,
	})

	clientCtx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)
	c.runDone = make(chan struct{})

	go func() {
		defer close(c.runDone)
		err := c.client.Run(clientCtx, func(ctx context.Context) error {
			close(readyChan)
			<-ctx.Done()
			return ctx.Err()
		})
		select {
		case errChan <- err:
		default:
		}
	}()

	select {
	case <-readyChan:
		c.logger.Debug().Msg("auth client connected")
		return c, nil
	case err := <-errChan:
		cancel()
		return nil, fmt.Errorf("failed to connect auth client: %w", err)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// SendCode asks Telegram to send a verification code to the phone and
// returns the phone code hash needed to confirm it
func (c *AuthClient) SendCode(ctx context.Context, phone string) (string, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to send code: %w", err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code type %T", sent)
	}

	c.logger.Info().Str("phone", maskPhoneNumber(phone)).Msg("verification code sent")
	return code.PhoneCodeHash, nil
}

// SignIn confirms the verification code. Returns domain.ErrPasswordRequired
// when the account has a two-factor cloud password.
func (c *AuthClient) SignIn(ctx context.Context, phone, code, codeHash string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, codeHash)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			return domain.ErrPasswordRequired
		}
		return fmt.Errorf("sign in failed: %w", err)
	}

	c.logger.Info().Msg("sign in successful")
	return nil
}

// Password completes sign-in with the two-factor cloud password
func (c *AuthClient) Password(ctx context.Context, password string) error {
	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		return fmt.Errorf("password sign in failed: %w", err)
	}

	c.logger.Info().Msg("password sign in successful")
	return nil
}

// ExportSession returns the authorized session encoded as a storable token
func (c *AuthClient) ExportSession(ctx context.Context) (string, error) {
	data, err := c.storage.LoadSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export session: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Close disconnects the temporary client
func (c *AuthClient) Close(ctx context.Context) error {
	c.cancelFunc()

	select {
	case <-c.runDone:
	case <-ctx.Done():
		c.logger.Warn().Msg("timeout waiting for auth client shutdown")
	}

	c.logger.Debug().Msg("auth client closed")
	return nil
}
