package postgres

import "time"

// CredentialModel is the gorm model for the telegram_credentials table
type CredentialModel struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       int64  `gorm:"uniqueIndex;not null"`
	APIID        int    `gorm:"column:api_id;not null"`
	APIHash      string `gorm:"column:api_hash;not null"`
	Phone        string `gorm:"not null"`
	SessionToken string `gorm:"not null;default:''"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the gorm table name
func (CredentialModel) TableName() string {
	return "telegram_credentials"
}

// ChatModel is the gorm model for the chats table
type ChatModel struct {
	ID             uint  `gorm:"primaryKey"`
	UserID         int64 `gorm:"not null"`
	TelegramChatID int64 `gorm:"not null"`
	Name           string
	IsActive       bool `gorm:"not null;default:true"`
	CreatedAt      time.Time
}

// TableName overrides the gorm table name
func (ChatModel) TableName() string {
	return "chats"
}

// TopicModel is the gorm model for the topics table
type TopicModel struct {
	ID          int64 `gorm:"primaryKey"`
	UserID      int64 `gorm:"not null"`
	Name        string
	Description string
	CreatedAt   time.Time
}

// TableName overrides the gorm table name
func (TopicModel) TableName() string {
	return "topics"
}

// ThreadModel is the gorm model for the threads table
type ThreadModel struct {
	ID              int64 `gorm:"primaryKey"`
	UserID          int64 `gorm:"not null"`
	TelegramChatID  int64 `gorm:"not null"`
	TopicID         int64 `gorm:"not null"`
	ConfidenceScore float64
	LastActivityAt  time.Time
	CreatedAt       time.Time
}

// TableName overrides the gorm table name
func (ThreadModel) TableName() string {
	return "threads"
}

// ThreadMessageModel links telegram messages to the thread they belong to
type ThreadMessageModel struct {
	ID                int64 `gorm:"primaryKey"`
	ThreadID          int64 `gorm:"not null"`
	TelegramChatID    int64 `gorm:"not null"`
	TelegramMessageID int64 `gorm:"not null"`
	CreatedAt         time.Time
}

// TableName overrides the gorm table name
func (ThreadMessageModel) TableName() string {
	return "thread_messages"
}
