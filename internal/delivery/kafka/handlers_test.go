package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/config"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/batch"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/matcher"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/registration"
	regdeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/registration/deps"
	"github.com/yourusername/telegram-reader/relay-service/internal/domain/session"
	sessiondeps "github.com/yourusername/telegram-reader/relay-service/internal/domain/session/deps"
	infrakafka "github.com/yourusername/telegram-reader/relay-service/internal/infrastructure/kafka"
	"github.com/yourusername/telegram-reader/relay-service/internal/repository/memory"
	pkgerrors "github.com/yourusername/telegram-reader/relay-service/pkg/errors"
)

// mockProtocolClient is a mock implementation of sessiondeps.ProtocolClient
type mockProtocolClient struct {
	mu        sync.Mutex
	connected bool
	replies   int
	replyErr  error
}

func (m *mockProtocolClient) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *mockProtocolClient) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *mockProtocolClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockProtocolClient) SendReply(_ context.Context, _, _ int64, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replyErr != nil {
		return 0, m.replyErr
	}
	m.replies++
	return int64(m.replies), nil
}

func (m *mockProtocolClient) replyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replies
}

type mockClientFactory struct {
	client *mockProtocolClient
}

func (f *mockClientFactory) NewClient(_ domain.Credential, _ func(domain.Event)) (sessiondeps.ProtocolClient, error) {
	return f.client, nil
}

// mockAuthClient is a mock implementation of regdeps.AuthClient
type mockAuthClient struct{}

func (mockAuthClient) SendCode(_ context.Context, _ string) (string, error) { return "hash", nil }
func (mockAuthClient) SignIn(_ context.Context, _, _, _ string) error       { return nil }
func (mockAuthClient) Password(_ context.Context, _ string) error           { return nil }
func (mockAuthClient) ExportSession(_ context.Context) (string, error)      { return "token", nil }
func (mockAuthClient) Close(_ context.Context) error                        { return nil }

type mockAuthFactory struct{}

func (mockAuthFactory) NewAuthClient(_ context.Context, _ int, _ string) (regdeps.AuthClient, error) {
	return mockAuthClient{}, nil
}

// memoryPendingStore is an in-memory domain.PendingAuthStore
type memoryPendingStore struct {
	mu      sync.Mutex
	entries map[int64]domain.PendingAuth
}

func (s *memoryPendingStore) Put(_ context.Context, auth domain.PendingAuth, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[auth.UserID] = auth
	return nil
}

func (s *memoryPendingStore) Get(_ context.Context, userID int64) (*domain.PendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.entries[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundErrorf("no pending auth for user %d", userID)
	}
	return &auth, nil
}

func (s *memoryPendingStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// nopPublisher satisfies the publisher interfaces the domain services need
type nopPublisher struct{}

func (nopPublisher) PublishRegistrationStatus(_ context.Context, _ domain.RegistrationStatus) error {
	return nil
}
func (nopPublisher) PublishClientStatus(_ context.Context, _ int64, _ string) error  { return nil }
func (nopPublisher) PublishClientError(_ context.Context, _ int64, _ string) error   { return nil }
func (nopPublisher) PublishInboundMessage(_ context.Context, _ domain.InboundMessage) error {
	return nil
}
func (nopPublisher) PublishReplyTask(_ context.Context, _ domain.ReplyTask) error { return nil }

// countingEmbedder returns a fixed vector for every text and counts Encode calls
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEmbedder) Encode(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func (e *countingEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type relayFixture struct {
	handler  *RelayHandler
	registry *session.Registry
	creds    *memory.CredentialRepository
	client   *mockProtocolClient
}

func createRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	creds := memory.NewCredentialRepository()
	client := &mockProtocolClient{}

	registry := session.NewRegistry(
		&mockClientFactory{client: client},
		creds,
		memory.NewChatRepository(),
		memory.NewThreadRepository(),
		nopPublisher{},
		nopPublisher{},
		&config.SessionConfig{ChatRefreshInterval: time.Hour, ConnectTimeout: 5 * time.Second},
		zerolog.Nop(),
	)

	registrationService := registration.NewService(
		mockAuthFactory{},
		&memoryPendingStore{entries: make(map[int64]domain.PendingAuth)},
		creds,
		nopPublisher{},
		time.Hour,
		zerolog.Nop(),
	)
	t.Cleanup(registrationService.Close)

	return &relayFixture{
		handler:  NewRelayHandler(registrationService, registry, zerolog.Nop()),
		registry: registry,
		creds:    creds,
		client:   client,
	}
}

func consumerMessage(t *testing.T, topic string, event interface{}) *sarama.ConsumerMessage {
	t.Helper()

	value, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: topic, Value: value}
}

func TestRelayHandlerDispatchTable(t *testing.T) {
	f := createRelayFixture(t)

	handlers := f.handler.Handlers()
	expected := []string{
		infrakafka.TopicRegistrationInit,
		infrakafka.TopicRegistrationConfirm,
		infrakafka.TopicRegistrationPassword,
		infrakafka.TopicClientStart,
		infrakafka.TopicClientStop,
		infrakafka.TopicMessageSend,
	}

	if len(handlers) != len(expected) {
		t.Errorf("Expected %d handled topics, got %d", len(expected), len(handlers))
	}
	for _, topic := range expected {
		if handlers[topic] == nil {
			t.Errorf("No handler for topic %q", topic)
		}
	}
}

func TestHandleClientStartAndStop(t *testing.T) {
	f := createRelayFixture(t)
	ctx := context.Background()

	err := f.creds.Save(ctx, &domain.Credential{UserID: 7, SessionToken: "token"})
	if err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}

	msg := consumerMessage(t, infrakafka.TopicClientStart, infrakafka.ClientStartEvent{UserID: 7})
	if err := f.handler.handleClientStart(ctx, msg); err != nil {
		t.Fatalf("handleClientStart failed: %v", err)
	}
	if _, err := f.registry.Get(7); err != nil {
		t.Errorf("Expected running session after client.start: %v", err)
	}

	msg = consumerMessage(t, infrakafka.TopicClientStop, infrakafka.ClientStopEvent{UserID: 7})
	if err := f.handler.handleClientStop(ctx, msg); err != nil {
		t.Fatalf("handleClientStop failed: %v", err)
	}
	if _, err := f.registry.Get(7); err == nil {
		t.Error("Expected no session after client.stop")
	}

	// Stopping again is a no-op, not a redelivery
	if err := f.handler.handleClientStop(ctx, msg); err != nil {
		t.Errorf("Repeated client.stop must not fail the broker message: %v", err)
	}
}

func TestHandleClientStartUnregisteredUser(t *testing.T) {
	f := createRelayFixture(t)

	msg := consumerMessage(t, infrakafka.TopicClientStart, infrakafka.ClientStartEvent{UserID: 404})
	if err := f.handler.handleClientStart(context.Background(), msg); err != nil {
		t.Errorf("client.start for an unknown user must not be redelivered: %v", err)
	}
}

func TestHandleRegistrationInitInvalidPayload(t *testing.T) {
	f := createRelayFixture(t)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: infrakafka.TopicRegistrationInit, Value: []byte("not json")}
	if err := f.handler.handleRegistrationInit(ctx, msg); err != nil {
		t.Errorf("Malformed payload must be dropped, not redelivered: %v", err)
	}

	// Missing credentials are dropped the same way
	msg = consumerMessage(t, infrakafka.TopicRegistrationInit, infrakafka.RegistrationInitEvent{UserID: 1})
	if err := f.handler.handleRegistrationInit(ctx, msg); err != nil {
		t.Errorf("Incomplete payload must be dropped, not redelivered: %v", err)
	}
}

func TestHandleRegistrationFlow(t *testing.T) {
	f := createRelayFixture(t)
	ctx := context.Background()

	init := consumerMessage(t, infrakafka.TopicRegistrationInit, infrakafka.RegistrationInitEvent{
		UserID: 5, APIID: 12345, APIHash: "hash", Phone: "+15550001111",
	})
	if err := f.handler.handleRegistrationInit(ctx, init); err != nil {
		t.Fatalf("handleRegistrationInit failed: %v", err)
	}

	confirm := consumerMessage(t, infrakafka.TopicRegistrationConfirm, infrakafka.RegistrationConfirmEvent{
		UserID: 5, Code: "12345",
	})
	if err := f.handler.handleRegistrationConfirm(ctx, confirm); err != nil {
		t.Fatalf("handleRegistrationConfirm failed: %v", err)
	}

	cred, err := f.creds.GetByUserID(ctx, 5)
	if err != nil {
		t.Fatalf("Expected persisted credential after confirmation: %v", err)
	}
	if cred.SessionToken == "" {
		t.Error("Expected session token after confirmation")
	}
}

func TestHandleMessageSend(t *testing.T) {
	f := createRelayFixture(t)
	ctx := context.Background()

	if err := f.creds.Save(ctx, &domain.Credential{UserID: 7, SessionToken: "token"}); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if _, err := f.registry.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	msg := consumerMessage(t, infrakafka.TopicMessageSend, infrakafka.MessageSendEvent{
		UserID: 7, ChatID: 100, ReplyToMessageID: 42, Text: "drafted reply",
	})
	if err := f.handler.handleMessageSend(ctx, msg); err != nil {
		t.Fatalf("handleMessageSend failed: %v", err)
	}
	if f.client.replyCount() != 1 {
		t.Errorf("Expected 1 sent reply, got %d", f.client.replyCount())
	}
}

func TestHandleMessageSendErrorPolicy(t *testing.T) {
	f := createRelayFixture(t)
	ctx := context.Background()

	// No running session: drop
	msg := consumerMessage(t, infrakafka.TopicMessageSend, infrakafka.MessageSendEvent{
		UserID: 7, ChatID: 100, Text: "drafted reply",
	})
	if err := f.handler.handleMessageSend(ctx, msg); err != nil {
		t.Errorf("message.send without a session must be dropped: %v", err)
	}

	if err := f.creds.Save(ctx, &domain.Credential{UserID: 7, SessionToken: "token"}); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if _, err := f.registry.Start(ctx, 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Unresolvable peer: drop
	f.client.replyErr = domain.ErrPeerNotResolved
	if err := f.handler.handleMessageSend(ctx, msg); err != nil {
		t.Errorf("Unresolvable peer must be dropped: %v", err)
	}

	// Session down: redeliver
	f.client.replyErr = domain.ErrNotConnected
	if err := f.handler.handleMessageSend(ctx, msg); err == nil {
		t.Error("message.send on a down session must be redelivered")
	}
}

func createWorkerMatcher() *matcher.Matcher {
	return matcher.NewMatcher(memory.NewTopicRepository(), &countingEmbedder{}, nopPublisher{}, 0.7, zerolog.Nop())
}

func TestWorkerHandlerDispatchTable(t *testing.T) {
	manager := batch.NewManager(10, time.Hour, func(_ context.Context, _ domain.PartitionKey, _ []domain.InboundMessage) error {
		return nil
	}, zerolog.Nop())
	handler := NewWorkerHandler(manager, createWorkerMatcher(), zerolog.Nop())

	handlers := handler.Handlers()
	expected := []string{
		infrakafka.TopicMessageProcess,
		infrakafka.TopicTopicInvalidate,
	}

	if len(handlers) != len(expected) {
		t.Errorf("Expected %d handled topics, got %d", len(expected), len(handlers))
	}
	for _, topic := range expected {
		if handlers[topic] == nil {
			t.Errorf("No handler for topic %q", topic)
		}
	}
}

func TestWorkerHandlerBatchesMessages(t *testing.T) {
	var (
		mu      sync.Mutex
		flushed [][]domain.InboundMessage
	)
	flush := func(_ context.Context, _ domain.PartitionKey, b []domain.InboundMessage) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, b)
		return nil
	}

	manager := batch.NewManager(2, time.Hour, flush, zerolog.Nop())
	handler := NewWorkerHandler(manager, createWorkerMatcher(), zerolog.Nop())

	ctx := context.Background()
	for i := int64(1); i <= 2; i++ {
		msg := consumerMessage(t, infrakafka.TopicMessageProcess, domain.InboundMessage{
			TelegramMessageID: i,
			UserID:            1,
			ChatID:            100,
			Text:              "hello",
			CreatedAt:         time.Now(),
		})
		if err := handler.handleMessageProcess(ctx, msg); err != nil {
			t.Fatalf("handleMessageProcess failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || len(flushed[0]) != 2 {
		t.Fatalf("Expected one flush of 2 messages, got %v", flushed)
	}
}

func TestWorkerHandlerDropsInvalidPayload(t *testing.T) {
	manager := batch.NewManager(10, time.Hour, func(_ context.Context, _ domain.PartitionKey, _ []domain.InboundMessage) error {
		return nil
	}, zerolog.Nop())
	handler := NewWorkerHandler(manager, createWorkerMatcher(), zerolog.Nop())

	ctx := context.Background()
	msg := &sarama.ConsumerMessage{Topic: infrakafka.TopicMessageProcess, Value: []byte("not json")}
	if err := handler.handleMessageProcess(ctx, msg); err != nil {
		t.Errorf("Malformed payload must be dropped, not redelivered: %v", err)
	}

	msg = consumerMessage(t, infrakafka.TopicMessageProcess, domain.InboundMessage{Text: "no ids"})
	if err := handler.handleMessageProcess(ctx, msg); err != nil {
		t.Errorf("Payload without ids must be dropped, not redelivered: %v", err)
	}
}

func TestWorkerHandlerTopicInvalidate(t *testing.T) {
	topics := memory.NewTopicRepository()
	topics.SetTopics(1, 100, []domain.Topic{{ID: 1, Name: "news", Description: "daily news"}})

	embedder := &countingEmbedder{}
	m := matcher.NewMatcher(topics, embedder, nopPublisher{}, 0.7, zerolog.Nop())
	manager := batch.NewManager(1, time.Hour, m.ProcessBatch, zerolog.Nop())
	handler := NewWorkerHandler(manager, m, zerolog.Nop())

	ctx := context.Background()
	process := func(msgID int64) {
		t.Helper()
		msg := consumerMessage(t, infrakafka.TopicMessageProcess, domain.InboundMessage{
			TelegramMessageID: msgID,
			UserID:            1,
			ChatID:            100,
			Text:              "hello",
			CreatedAt:         time.Now(),
		})
		if err := handler.handleMessageProcess(ctx, msg); err != nil {
			t.Fatalf("handleMessageProcess failed: %v", err)
		}
	}

	// First batch embeds the topics and the message
	process(1)
	if embedder.callCount() != 2 {
		t.Fatalf("Expected 2 Encode calls after first batch, got %d", embedder.callCount())
	}

	inv := consumerMessage(t, infrakafka.TopicTopicInvalidate, infrakafka.TopicInvalidateEvent{UserID: 1, ChatID: 100})
	if err := handler.handleTopicInvalidate(ctx, inv); err != nil {
		t.Fatalf("handleTopicInvalidate failed: %v", err)
	}

	// Invalidation forces the next batch to re-embed the topics
	process(2)
	if embedder.callCount() != 4 {
		t.Errorf("Expected topics re-embedded after invalidation, got %d Encode calls", embedder.callCount())
	}
}

func TestWorkerHandlerTopicInvalidateDropsInvalidPayload(t *testing.T) {
	manager := batch.NewManager(10, time.Hour, func(_ context.Context, _ domain.PartitionKey, _ []domain.InboundMessage) error {
		return nil
	}, zerolog.Nop())
	handler := NewWorkerHandler(manager, createWorkerMatcher(), zerolog.Nop())

	ctx := context.Background()
	msg := &sarama.ConsumerMessage{Topic: infrakafka.TopicTopicInvalidate, Value: []byte("not json")}
	if err := handler.handleTopicInvalidate(ctx, msg); err != nil {
		t.Errorf("Malformed payload must be dropped, not redelivered: %v", err)
	}

	msg = consumerMessage(t, infrakafka.TopicTopicInvalidate, infrakafka.TopicInvalidateEvent{UserID: 1})
	if err := handler.handleTopicInvalidate(ctx, msg); err != nil {
		t.Errorf("Payload without a chat id must be dropped, not redelivered: %v", err)
	}
}
