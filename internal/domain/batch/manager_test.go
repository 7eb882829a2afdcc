package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/telegram-reader/relay-service/internal/domain"
)

func TestManagerBatchesPerPartition(t *testing.T) {
	rec := &flushRecorder{}
	m := NewManager(2, time.Hour, rec.flush, zerolog.Nop())

	ctx := context.Background()
	if err := m.Add(ctx, testMessage(1, 100, 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := m.Add(ctx, testMessage(1, 200, 2)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("Messages of different chats must not share a batch, got %d flushes", rec.count())
	}

	if err := m.Add(ctx, testMessage(1, 100, 3)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("Expected 1 flush, got %d", rec.count())
	}

	got := rec.batch(0)
	if len(got) != 2 {
		t.Fatalf("Expected batch of 2, got %d", len(got))
	}
	for _, msg := range got {
		if msg.ChatID != 100 {
			t.Errorf("Batch crossed partitions, got chat_id %d", msg.ChatID)
		}
	}
}

func TestManagerReplacesFlushedCollector(t *testing.T) {
	rec := &flushRecorder{}
	m := NewManager(1, time.Hour, rec.flush, zerolog.Nop())

	ctx := context.Background()
	if err := m.Add(ctx, testMessage(1, 100, 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := m.Add(ctx, testMessage(1, 100, 2)); err != nil {
		t.Fatalf("Add after flush returned error: %v", err)
	}

	if rec.count() != 2 {
		t.Fatalf("Expected 2 flushes, got %d", rec.count())
	}
}

func TestManagerAddRetriesClosedCollector(t *testing.T) {
	rec := &flushRecorder{}
	m := NewManager(10, time.Hour, rec.flush, zerolog.Nop())

	ctx := context.Background()
	key := testMessage(1, 100, 1).Key()

	if err := m.Add(ctx, testMessage(1, 100, 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	// Flush the live collector out from under the next Add. The manager must
	// notice the closed collector and open a fresh one.
	m.mu.Lock()
	stale := m.collectors[key]
	m.mu.Unlock()
	if err := stale.FlushNow(ctx); err != nil {
		t.Fatalf("FlushNow returned error: %v", err)
	}

	if err := m.Add(ctx, testMessage(1, 100, 2)); err != nil {
		t.Fatalf("Add after external flush returned error: %v", err)
	}

	m.mu.Lock()
	replacement := m.collectors[key]
	m.mu.Unlock()
	if replacement == nil || replacement == stale {
		t.Fatal("Expected a fresh collector after the stale one flushed")
	}
}

func TestManagerCloseFlushesAll(t *testing.T) {
	rec := &flushRecorder{}
	m := NewManager(10, time.Hour, rec.flush, zerolog.Nop())

	ctx := context.Background()
	if err := m.Add(ctx, testMessage(1, 100, 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := m.Add(ctx, testMessage(2, 200, 2)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if rec.count() != 2 {
		t.Fatalf("Expected 2 shutdown flushes, got %d", rec.count())
	}
}

func TestManagerCloseReportsFlushError(t *testing.T) {
	flushErr := errors.New("broker down")
	rec := &flushRecorder{err: flushErr}
	m := NewManager(10, time.Hour, rec.flush, zerolog.Nop())

	ctx := context.Background()
	if err := m.Add(ctx, testMessage(1, 100, 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if err := m.Close(ctx); !errors.Is(err, flushErr) {
		t.Fatalf("Expected flush error from Close, got %v", err)
	}
}

func TestManagerAddWaitsForInFlightFlush(t *testing.T) {
	release := make(chan struct{})
	var (
		mu      sync.Mutex
		flushes [][]domain.InboundMessage
	)
	flush := func(_ context.Context, _ domain.PartitionKey, batch []domain.InboundMessage) error {
		<-release
		mu.Lock()
		defer mu.Unlock()
		flushes = append(flushes, batch)
		return nil
	}

	m := NewManager(1, time.Hour, flush, zerolog.Nop())
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- m.Add(ctx, testMessage(1, 100, 1))
	}()
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- m.Add(ctx, testMessage(1, 100, 2))
	}()

	// Both adds ride on the held-open flush, neither may return yet
	select {
	case err := <-firstDone:
		t.Fatalf("First add returned before its flush completed: %v", err)
	case err := <-secondDone:
		t.Fatalf("Second add returned before the in-flight flush completed: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("First add failed: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("Second add failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushes) != 2 {
		t.Fatalf("Expected 2 single-message flushes, got %d", len(flushes))
	}
}

func TestManagerAddHonorsContextWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	flush := func(_ context.Context, _ domain.PartitionKey, _ []domain.InboundMessage) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	m := NewManager(1, time.Hour, flush, zerolog.Nop())
	defer close(release)

	background := context.Background()
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- m.Add(background, testMessage(1, 100, 1))
	}()
	<-started

	ctx, cancel := context.WithCancel(background)
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- m.Add(ctx, testMessage(1, 100, 2))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-secondDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancelled add did not return while a flush was in flight")
	}
}
