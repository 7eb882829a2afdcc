package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// ChatRepository is the PostgreSQL implementation of domain.ChatRepository
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) domain.ChatRepository {
	return &ChatRepository{db: db}
}

// GetActiveChatIDs returns the telegram chat ids a user's session may observe
func (r *ChatRepository) GetActiveChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	result := r.db.WithContext(ctx).
		Model(&ChatModel{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("telegram_chat_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query active chats: %w", result.Error)
	}

	return ids, nil
}
