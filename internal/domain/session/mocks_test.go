package session

import (
	"context"
	"errors"
	"sync"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
)

// mockProtocolClient is a mock implementation of deps.ProtocolClient
type mockProtocolClient struct {
	mu          sync.RWMutex
	connected   bool
	connectErr  error
	connects    int
	connectGate chan struct{}
	sentReplies []sentReply
	handler     func(domain.Event)
}

type sentReply struct {
	chatID    int64
	messageID int64
	text      string
}

func (m *mockProtocolClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.connects++
	if m.connectErr != nil {
		m.mu.Unlock()
		return m.connectErr
	}
	gate := m.connectGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *mockProtocolClient) connectAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connects
}

func (m *mockProtocolClient) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

func (m *mockProtocolClient) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *mockProtocolClient) SendReply(_ context.Context, chatID, messageID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sentReplies = append(m.sentReplies, sentReply{chatID: chatID, messageID: messageID, text: text})
	return int64(len(m.sentReplies)), nil
}

func (m *mockProtocolClient) setConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// mockFactory hands out a prepared client and records the event handler it
// was wired with
type mockFactory struct {
	mu      sync.Mutex
	client  *mockProtocolClient
	perUser map[int64]*mockProtocolClient
	clients []*mockProtocolClient
	err     error
}

func (f *mockFactory) NewClient(cred domain.Credential, handler func(domain.Event)) (deps.ProtocolClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	client := f.client
	if c, ok := f.perUser[cred.UserID]; ok {
		client = c
	}
	if client == nil {
		client = &mockProtocolClient{}
	}
	client.handler = handler
	f.clients = append(f.clients, client)
	return client, nil
}

// mockMessagePublisher is a mock implementation of domain.MessagePublisher
type mockMessagePublisher struct {
	mu       sync.Mutex
	messages []domain.InboundMessage
	tasks    []domain.ReplyTask
	taskErr  error
}

func (p *mockMessagePublisher) PublishInboundMessage(_ context.Context, msg domain.InboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages = append(p.messages, msg)
	return nil
}

func (p *mockMessagePublisher) PublishReplyTask(_ context.Context, task domain.ReplyTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.taskErr != nil {
		return p.taskErr
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *mockMessagePublisher) publishedMessages() []domain.InboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.InboundMessage(nil), p.messages...)
}

func (p *mockMessagePublisher) publishedTasks() []domain.ReplyTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ReplyTask(nil), p.tasks...)
}

type statusEvent struct {
	userID int64
	event  string
}

// mockStatusPublisher is a mock implementation of domain.ClientStatusPublisher
type mockStatusPublisher struct {
	mu        sync.Mutex
	statuses  []statusEvent
	errors    []statusEvent
	statusErr error
}

func (p *mockStatusPublisher) PublishClientStatus(_ context.Context, userID int64, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.statusErr != nil {
		return p.statusErr
	}
	p.statuses = append(p.statuses, statusEvent{userID: userID, event: event})
	return nil
}

func (p *mockStatusPublisher) PublishClientError(_ context.Context, userID int64, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors = append(p.errors, statusEvent{userID: userID, event: message})
	return nil
}

func (p *mockStatusPublisher) published() []statusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]statusEvent(nil), p.statuses...)
}

func (p *mockStatusPublisher) setStatusErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusErr = err
}

var errFactoryBroken = errors.New("factory broken")
