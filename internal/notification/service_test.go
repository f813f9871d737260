package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/persistence/memory"
)

func TestCreatePendingNotificationDedupsByKey(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	in := CreateInput{
		UserID:         uuid.New(),
		Kind:           domain.KindReadingReminder,
		ScheduleAt:     time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
		IdempotencyKey: "reading:reminder:test:2025-03-10",
	}

	first, created, err := service.CreatePendingNotification(context.Background(), in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !created {
		t.Fatalf("expected created")
	}
	if first.Status != domain.NotificationStatusScheduled {
		t.Fatalf("expected SCHEDULED got %s", first.Status)
	}

	second, created, err := service.CreatePendingNotification(context.Background(), in)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if created {
		t.Fatalf("replay must not create")
	}
	if second.ID != first.ID {
		t.Fatalf("replay must return the original notification")
	}

	events := store.OutboxEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event got %d", len(events))
	}
	if events[0].EventType != domain.EventNotificationScheduled {
		t.Fatalf("unexpected event type %s", events[0].EventType)
	}
	if events[0].AggregateID != first.ID {
		t.Fatalf("event must reference the notification")
	}
}

func TestCreatePendingNotificationDerivesKey(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	related := uuid.New()
	in := CreateInput{
		UserID:     uuid.New(),
		Kind:       domain.KindExerciseStart,
		RelatedID:  &related,
		ScheduleAt: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	}

	first, _, err := service.CreatePendingNotification(context.Background(), in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.IdempotencyKey == "" {
		t.Fatalf("expected a derived key")
	}

	second, created, err := service.CreatePendingNotification(context.Background(), in)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("same derived key must dedup")
	}
}

func TestMarkAsRetried(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	created, _, err := service.CreatePendingNotification(context.Background(), CreateInput{
		UserID:         uuid.New(),
		Kind:           domain.KindReadingReminder,
		ScheduleAt:     time.Now().UTC().Add(time.Hour),
		IdempotencyKey: "retry-target",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	retried, err := service.MarkAsRetried(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("expected retry count 1 got %d", retried.RetryCount)
	}
	if retried.Status != domain.NotificationStatusRetryScheduled {
		t.Fatalf("expected RETRY_SCHEDULED got %s", retried.Status)
	}

	events := store.OutboxEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 outbox events got %d", len(events))
	}
	if events[1].EventType != domain.EventNotificationRetryScheduled {
		t.Fatalf("unexpected event type %s", events[1].EventType)
	}
}

func TestMarkAsRetriedMissingNotification(t *testing.T) {
	service := NewService(memory.NewStore())

	retried, err := service.MarkAsRetried(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried != nil {
		t.Fatalf("expected nil for a missing notification")
	}
}
