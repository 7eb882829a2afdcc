package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// PendingAuthStore keeps in-flight registration handshakes in Redis hashes
// with a TTL. An expired or missing entry reads back as a NotFoundError.
type PendingAuthStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewPendingAuthStore creates a Redis-backed pending auth store
func NewPendingAuthStore(client *redis.Client, logger zerolog.Logger) *PendingAuthStore {
	return &PendingAuthStore{
		client: client,
		logger: logger.With().Str("component", "pending_auth_store").Logger(),
	}
}

func authKey(userID int64) string {
	return fmt.Sprintf("auth:%d", userID)
}

// Put stores the handshake state under auth:<user_id> with the given TTL
func (s *PendingAuthStore) Put(ctx context.Context, auth domain.PendingAuth, ttl time.Duration) error {
	key := authKey(auth.UserID)

	fields := map[string]interface{}{
		"handshake_id":    auth.HandshakeID,
		"phone":           auth.Phone,
		"api_id":          strconv.Itoa(auth.APIID),
		"api_hash":        auth.APIHash,
		"phone_code_hash": auth.PhoneCodeHash,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store pending auth: %w", err)
	}

	s.logger.Debug().
		Int64("user_id", auth.UserID).
		Dur("ttl", ttl).
		Msg("Pending auth stored")

	return nil
}

// Get reads the handshake state back. A missing or expired key yields a
// NotFoundError so callers can map it to an expired-handshake response.
func (s *PendingAuthStore) Get(ctx context.Context, userID int64) (*domain.PendingAuth, error) {
	fields, err := s.client.HGetAll(ctx, authKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending auth: %w", err)
	}

	if len(fields) == 0 {
		return nil, pkgerrors.NewNotFoundErrorf("no pending auth for user %d", userID)
	}

	apiID, err := strconv.Atoi(fields["api_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt pending auth for user %d: %w", userID, err)
	}

	return &domain.PendingAuth{
		UserID:        userID,
		HandshakeID:   fields["handshake_id"],
		Phone:         fields["phone"],
		APIID:         apiID,
		APIHash:       fields["api_hash"],
		PhoneCodeHash: fields["phone_code_hash"],
	}, nil
}

// Delete removes the handshake state. Deleting a missing key is not an error.
func (s *PendingAuthStore) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, authKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending auth: %w", err)
	}
	return nil
}
