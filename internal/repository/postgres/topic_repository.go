package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

// TopicRepository is the PostgreSQL implementation of domain.TopicRepository
type TopicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *gorm.DB) domain.TopicRepository {
	return &TopicRepository{db: db}
}

// GetTopics returns the topics bound to a chat, ordered by topic id
func (r *TopicRepository) GetTopics(ctx context.Context, userID, chatID int64) ([]domain.Topic, error) {
	var models []TopicModel
	result := r.db.WithContext(ctx).
		Joins("JOIN chat_topics ON chat_topics.topic_id = topics.id").
		Joins("JOIN chats ON chats.id = chat_topics.chat_id").
		Where("topics.user_id = ? AND chats.telegram_chat_id = ?", userID, chatID).
		Order("topics.id").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query topics: %w", result.Error)
	}

	topics := make([]domain.Topic, 0, len(models))
	for _, m := range models {
		topics = append(topics, domain.Topic{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
		})
	}
	return topics, nil
}
