package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// ThreadRepository is the PostgreSQL implementation of domain.ThreadRepository
type ThreadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(db *gorm.DB) domain.ThreadRepository {
	return &ThreadRepository{db: db}
}

// GetByMessage returns the thread containing the given message, resolved
// through the thread_messages link table
func (r *ThreadRepository) GetByMessage(ctx context.Context, chatID, messageID int64) (*domain.Thread, error) {
	var link ThreadMessageModel
	result := r.db.WithContext(ctx).
		Where("telegram_chat_id = ? AND telegram_message_id = ?", chatID, messageID).
		First(&link)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundErrorf("no thread for message %d in chat %d", messageID, chatID)
		}
		return nil, fmt.Errorf("failed to query thread message: %w", result.Error)
	}

	var model ThreadModel
	result = r.db.WithContext(ctx).Where("id = ?", link.ThreadID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewNotFoundErrorf("thread %d not found", link.ThreadID)
		}
		return nil, fmt.Errorf("failed to query thread: %w", result.Error)
	}

	return &domain.Thread{
		ID:      model.ID,
		ChatID:  model.TelegramChatID,
		TopicID: model.TopicID,
		Score:   model.ConfidenceScore,
	}, nil
}
