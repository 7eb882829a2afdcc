package memory

import (
	"context"
	"sync"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// CredentialRepository is an in-memory implementation of domain.CredentialRepository
type CredentialRepository struct {
	mu    sync.RWMutex
	creds map[int64]domain.Credential
}

// NewCredentialRepository creates an empty in-memory credential repository
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{creds: make(map[int64]domain.Credential)}
}

func (r *CredentialRepository) GetByUserID(_ context.Context, userID int64) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.creds[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundErrorf("credential not found for user %d", userID)
	}
	return &cred, nil
}

func (r *CredentialRepository) All(_ context.Context) ([]domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds := make([]domain.Credential, 0, len(r.creds))
	for _, c := range r.creds {
		creds = append(creds, c)
	}
	return creds, nil
}

func (r *CredentialRepository) Save(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creds[cred.UserID] = *cred
	return nil
}

func (r *CredentialRepository) UpdateSessionToken(_ context.Context, userID int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.creds[userID]
	if !ok {
		return pkgerrors.NewNotFoundErrorf("credential not found for user %d", userID)
	}
	cred.SessionToken = token
	r.creds[userID] = cred
	return nil
}

// ChatRepository is an in-memory implementation of domain.ChatRepository
type ChatRepository struct {
	mu    sync.RWMutex
	chats map[int64][]int64
}

// NewChatRepository creates an empty in-memory chat repository
func NewChatRepository() *ChatRepository {
	return &ChatRepository{chats: make(map[int64][]int64)}
}

func (r *ChatRepository) GetActiveChatIDs(_ context.Context, userID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, len(r.chats[userID]))
	copy(ids, r.chats[userID])
	return ids, nil
}

// SetActiveChatIDs replaces the active chat ids for a user
func (r *ChatRepository) SetActiveChatIDs(userID int64, ids []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chats[userID] = append([]int64(nil), ids...)
}

// TopicRepository is an in-memory implementation of domain.TopicRepository
type TopicRepository struct {
	mu     sync.RWMutex
	topics map[domain.PartitionKey][]domain.Topic
}

// NewTopicRepository creates an empty in-memory topic repository
func NewTopicRepository() *TopicRepository {
	return &TopicRepository{topics: make(map[domain.PartitionKey][]domain.Topic)}
}

func (r *TopicRepository) GetTopics(_ context.Context, userID, chatID int64) ([]domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := domain.PartitionKey{UserID: userID, ChatID: chatID}
	topics := make([]domain.Topic, len(r.topics[key]))
	copy(topics, r.topics[key])
	return topics, nil
}

// SetTopics replaces the topic set for a (user, chat) pair
func (r *TopicRepository) SetTopics(userID, chatID int64, topics []domain.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.PartitionKey{UserID: userID, ChatID: chatID}
	r.topics[key] = append([]domain.Topic(nil), topics...)
}

// ThreadRepository is an in-memory implementation of domain.ThreadRepository
type ThreadRepository struct {
	mu      sync.RWMutex
	threads map[[2]int64]domain.Thread // (chat id, message id) -> thread
}

// NewThreadRepository creates an empty in-memory thread repository
func NewThreadRepository() *ThreadRepository {
	return &ThreadRepository{threads: make(map[[2]int64]domain.Thread)}
}

func (r *ThreadRepository) GetByMessage(_ context.Context, chatID, messageID int64) (*domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.threads[[2]int64{chatID, messageID}]
	if !ok {
		return nil, pkgerrors.NewNotFoundErrorf("no thread for message %d in chat %d", messageID, chatID)
	}
	return &thread, nil
}

// AddThreadMessage links a message to a thread
func (r *ThreadRepository) AddThreadMessage(chatID, messageID int64, thread domain.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.threads[[2]int64{chatID, messageID}] = thread
}
