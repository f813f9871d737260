package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/godlife/internal/domain"
)

type fakeLeaser struct {
	mu        sync.Mutex
	pending   []domain.OutboxEvent
	completed []uuid.UUID
	failed    map[uuid.UUID]string
}

func (f *fakeLeaser) LeasePending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	leased := f.pending[:limit]
	f.pending = f.pending[limit:]
	return leased, nil
}

func (f *fakeLeaser) MarkComplete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeLeaser) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = make(map[uuid.UUID]string)
	}
	f.failed[id] = reason
	return nil
}

type fakeWriter struct {
	mu       sync.Mutex
	byTopic  map[string][]kafka.Message
	failWith error
}

func (f *fakeWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byTopic == nil {
		f.byTopic = make(map[string][]kafka.Message)
	}
	f.byTopic[topic] = append(f.byTopic[topic], msgs...)
	return nil
}

func mustEvent(t *testing.T, aggregateType, eventType string) domain.OutboxEvent {
	t.Helper()
	event, err := domain.NewOutboxEvent(aggregateType, uuid.New(), eventType, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("build event failed: %v", err)
	}
	return event
}

func TestProcessBatchRoutesByAggregateType(t *testing.T) {
	notif := mustEvent(t, domain.AggregateNotification, domain.EventNotificationScheduled)
	hook := mustEvent(t, domain.AggregateWebhook, domain.EventWebhookReceived)
	repo := &fakeLeaser{pending: []domain.OutboxEvent{notif, hook}}
	writer := &fakeWriter{}
	dispatcher := NewDispatcher(repo, writer, 0, 10)

	if err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(writer.byTopic[TopicNotificationEvents]) != 1 {
		t.Fatalf("expected 1 notification message got %d", len(writer.byTopic[TopicNotificationEvents]))
	}
	if len(writer.byTopic[TopicWebhookEvents]) != 1 {
		t.Fatalf("expected 1 webhook message got %d", len(writer.byTopic[TopicWebhookEvents]))
	}
	if len(repo.completed) != 2 {
		t.Fatalf("expected 2 completions got %d", len(repo.completed))
	}

	msg := writer.byTopic[TopicNotificationEvents][0]
	if string(msg.Key) != notif.AggregateID.String() {
		t.Fatalf("message key must be the aggregate id")
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "event_type" {
		t.Fatalf("expected an event_type header")
	}
}

func TestProcessBatchMarksFailedDeliveries(t *testing.T) {
	event := mustEvent(t, domain.AggregateNotification, domain.EventNotificationScheduled)
	repo := &fakeLeaser{pending: []domain.OutboxEvent{event}}
	writer := &fakeWriter{failWith: errors.New("broker unavailable")}
	dispatcher := NewDispatcher(repo, writer, 0, 10)

	if err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(repo.completed) != 0 {
		t.Fatalf("failed delivery must not complete")
	}
	if reason := repo.failed[event.ID]; reason != "broker unavailable" {
		t.Fatalf("unexpected failure reason %q", reason)
	}
}

func TestProcessBatchNoopOnEmptyOutbox(t *testing.T) {
	repo := &fakeLeaser{}
	writer := &fakeWriter{}
	dispatcher := NewDispatcher(repo, writer, 0, 10)

	if err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(writer.byTopic) != 0 {
		t.Fatalf("nothing should be written")
	}
}
