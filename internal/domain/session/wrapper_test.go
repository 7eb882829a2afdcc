package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
	"github.com/yourusername/telegram-reader/relay-service/internal/repository/memory"
)

type wrapperFixture struct {
	wrapper   *Wrapper
	client    *mockProtocolClient
	chats     *memory.ChatRepository
	threads   *memory.ThreadRepository
	publisher *mockMessagePublisher
}

func createTestWrapper(t *testing.T, userID int64) *wrapperFixture {
	t.Helper()

	factory := &mockFactory{}
	chats := memory.NewChatRepository()
	threads := memory.NewThreadRepository()
	publisher := &mockMessagePublisher{}

	wrapper, err := NewWrapper(
		userID,
		factory,
		domain.Credential{UserID: userID, SessionToken: "token"},
		chats,
		threads,
		publisher,
		time.Hour,
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("NewWrapper failed: %v", err)
	}

	return &wrapperFixture{
		wrapper:   wrapper,
		client:    factory.clients[0],
		chats:     chats,
		threads:   threads,
		publisher: publisher,
	}
}

func testEvent(chatID, messageID int64, text string) domain.Event {
	return domain.Event{
		ChatID:    chatID,
		MessageID: messageID,
		SenderID:  500,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func TestWrapperFiltersDisallowedChats(t *testing.T) {
	f := createTestWrapper(t, 1)
	f.chats.SetActiveChatIDs(1, []int64{100})

	ctx := context.Background()
	if err := f.wrapper.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.wrapper.Stop(ctx)

	f.client.handler(testEvent(100, 1, "allowed"))
	f.client.handler(testEvent(200, 2, "filtered"))

	messages := f.publisher.publishedMessages()
	if len(messages) != 1 {
		t.Fatalf("Expected 1 published message, got %d", len(messages))
	}
	if messages[0].ChatID != 100 || messages[0].Text != "allowed" {
		t.Errorf("Wrong message published: %+v", messages[0])
	}
	if messages[0].UserID != 1 {
		t.Errorf("Expected user id 1, got %d", messages[0].UserID)
	}
}

func TestWrapperRoutesRepliesToExistingThread(t *testing.T) {
	f := createTestWrapper(t, 1)
	f.chats.SetActiveChatIDs(1, []int64{100})
	f.threads.AddThreadMessage(100, 7, domain.Thread{ID: 3, ChatID: 100, TopicID: 9, Score: 0.91})

	ctx := context.Background()
	if err := f.wrapper.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.wrapper.Stop(ctx)

	event := testEvent(100, 8, "continuing the thread")
	event.ReplyToMessageID = 7
	f.client.handler(event)

	if got := len(f.publisher.publishedMessages()); got != 0 {
		t.Errorf("Thread continuation must bypass the batching pipeline, got %d inbound messages", got)
	}

	tasks := f.publisher.publishedTasks()
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 reply task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.TopicID != 9 || task.Score != 0.91 {
		t.Errorf("Task must carry the thread's topic and score, got %+v", task)
	}
	if task.TelegramMessageID != 8 || task.Content != "continuing the thread" {
		t.Errorf("Task must carry the reply itself, got %+v", task)
	}
}

func TestWrapperTreatsUnknownReplyAsUnthreaded(t *testing.T) {
	f := createTestWrapper(t, 1)
	f.chats.SetActiveChatIDs(1, []int64{100})

	ctx := context.Background()
	if err := f.wrapper.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.wrapper.Stop(ctx)

	event := testEvent(100, 8, "reply to an unmatched message")
	event.ReplyToMessageID = 7
	f.client.handler(event)

	if got := len(f.publisher.publishedTasks()); got != 0 {
		t.Errorf("Expected no reply tasks, got %d", got)
	}
	if got := len(f.publisher.publishedMessages()); got != 1 {
		t.Errorf("Expected the reply to enter the batching pipeline, got %d messages", got)
	}
}

func TestWrapperStopIsIdempotent(t *testing.T) {
	f := createTestWrapper(t, 1)

	ctx := context.Background()
	if err := f.wrapper.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := f.wrapper.Stop(ctx); err != nil {
		t.Fatalf("First stop failed: %v", err)
	}
	if err := f.wrapper.Stop(ctx); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
	if f.client.IsConnected() {
		t.Error("Stop must disconnect the client")
	}
}
