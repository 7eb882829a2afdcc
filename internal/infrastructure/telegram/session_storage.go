package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/gotd/td/session"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// CredentialSessionStorage implements session.Storage on top of the stored
// per-user session token. Refreshed sessions are written back to the
// credential record so the next boot reuses them.
type CredentialSessionStorage struct {
	userID int64
	repo   domain.CredentialRepository

	mu    sync.Mutex
	token string
}

// NewCredentialSessionStorage creates a session storage seeded with the
// current session token of the credential
func NewCredentialSessionStorage(userID int64, token string, repo domain.CredentialRepository) *CredentialSessionStorage {
	return &CredentialSessionStorage{
		userID: userID,
		repo:   repo,
		token:  token,
	}
}

// LoadSession returns the decoded session data or session.ErrNotFound when
// the user has no stored session yet
func (s *CredentialSessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return nil, session.ErrNotFound
	}

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session token: %w", err)
	}

	return data, nil
}

// StoreSession persists refreshed session data back to the credential record
func (s *CredentialSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	token := base64.StdEncoding.EncodeToString(data)

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.repo.UpdateSessionToken(ctx, s.userID, token); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}

	return nil
}

var _ session.Storage = (*CredentialSessionStorage)(nil)
