package reading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/persistence/memory"
)

func TestScheduleDailyReminderCreatesThenDuplicates(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	first, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID:        userID,
		ReferenceDate: referenceDate,
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if first.Result != ResultCreated {
		t.Fatalf("expected created got %s", first.Result)
	}
	// 21:00 KST is 12:00 UTC.
	want := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	if !first.Notification.ScheduleAt.Equal(want) {
		t.Fatalf("expected schedule at %s got %s", want, first.Notification.ScheduleAt)
	}

	second, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID:        userID,
		ReferenceDate: referenceDate,
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.Result != ResultDuplicate {
		t.Fatalf("expected duplicate got %s", second.Result)
	}
	if second.Notification.ID != first.Notification.ID {
		t.Fatalf("duplicate must return the original notification")
	}
	if events := store.OutboxEvents(); len(events) != 1 {
		t.Fatalf("expected 1 outbox event got %d", len(events))
	}
}

func TestScheduleDailyReminderDuplicateWinsOverPolicy(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	if _, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: referenceDate,
	}); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	// Disable the plan after the fact; a replay must still report duplicate,
	// not skipped_disabled.
	disableReadingPlan(t, store, userID)

	outcome, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: referenceDate,
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if outcome.Result != ResultDuplicate {
		t.Fatalf("expected duplicate got %s", outcome.Result)
	}
}

func TestScheduleDailyReminderScopeMismatch(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	otherID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	seedReadingPlan(t, store, otherID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	if _, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: referenceDate, IdempotencyKey: "shared-key",
	}); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	_, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: otherID, ReferenceDate: referenceDate, IdempotencyKey: "shared-key",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
}

func TestScheduleDailyReminderSkipsDisabledPlan(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, false)

	outcome, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if outcome.Result != ResultSkippedDisabled {
		t.Fatalf("expected skipped_disabled got %s", outcome.Result)
	}
	if outcome.Notification != nil {
		t.Fatalf("skip must not carry a notification")
	}
}

func TestScheduleDailyReminderRequiresPlan(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")

	_, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: time.Now(),
	})
	if !errors.Is(err, domain.ErrReadingPlanNotFound) {
		t.Fatalf("expected ErrReadingPlanNotFound got %v", err)
	}
}

func TestScheduleRetryAddsThirtyMinutes(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	base, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: referenceDate,
	})
	if err != nil {
		t.Fatalf("base failed: %v", err)
	}

	retry, err := service.ScheduleRetryIfIncomplete(context.Background(), RetryReminderInput{
		UserID:             userID,
		ReferenceDate:      referenceDate,
		BaseNotificationID: base.Notification.ID,
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retry.Result != ResultCreated {
		t.Fatalf("expected created got %s", retry.Result)
	}
	want := base.Notification.ScheduleAt.Add(30 * time.Minute)
	if !retry.Notification.ScheduleAt.Equal(want) {
		t.Fatalf("expected retry at %s got %s", want, retry.Notification.ScheduleAt)
	}
	if retry.Notification.Kind != domain.KindReadingReminderRetry {
		t.Fatalf("unexpected kind %s", retry.Notification.Kind)
	}
}

func TestScheduleRetrySkipsWhenAlreadyRead(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	base, err := service.ScheduleDailyReminder(context.Background(), DailyReminderInput{
		UserID: userID, ReferenceDate: referenceDate,
	})
	if err != nil {
		t.Fatalf("base failed: %v", err)
	}

	seedReadingLog(t, store, userID, referenceDate.Add(10*time.Hour), domain.ReadingLogStatusDone)

	outcome, err := service.ScheduleRetryIfIncomplete(context.Background(), RetryReminderInput{
		UserID:             userID,
		ReferenceDate:      referenceDate,
		BaseNotificationID: base.Notification.ID,
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if outcome.Result != ResultSkippedCompleted {
		t.Fatalf("expected skipped_completed got %s", outcome.Result)
	}
}

func TestScheduleRetryValidatesBaseNotification(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)
	userID := seedUser(t, store, "Asia/Seoul")
	seedReadingPlan(t, store, userID, 21*time.Hour, true)
	referenceDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	_, err := service.ScheduleRetryIfIncomplete(context.Background(), RetryReminderInput{
		UserID:             userID,
		ReferenceDate:      referenceDate,
		BaseNotificationID: uuid.New(),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
}

func seedUser(t *testing.T, store *memory.Store, timezone string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.WithinTx(context.Background(), func(ctx context.Context, r domain.Repositories) error {
		now := time.Now().UTC()
		return r.Users.Save(ctx, &domain.User{
			ID:         id,
			ExternalID: "ext-" + id.String(),
			Name:       "Tester",
			Timezone:   timezone,
			Status:     domain.UserStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	return id
}

func seedReadingPlan(t *testing.T, store *memory.Store, userID uuid.UUID, remind time.Duration, enabled bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.WithinTx(context.Background(), func(ctx context.Context, r domain.Repositories) error {
		now := time.Now().UTC()
		return r.ReadingPlans.Save(ctx, &domain.ReadingPlan{
			ID:          id,
			UserID:      userID,
			RemindTime:  remind,
			GoalMinutes: 30,
			Enabled:     enabled,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		t.Fatalf("seed reading plan failed: %v", err)
	}
	return id
}

func disableReadingPlan(t *testing.T, store *memory.Store, userID uuid.UUID) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, r domain.Repositories) error {
		plan, err := r.ReadingPlans.GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		plan.Enabled = false
		plan.UpdatedAt = time.Now().UTC()
		return r.ReadingPlans.Save(ctx, plan)
	})
	if err != nil {
		t.Fatalf("disable reading plan failed: %v", err)
	}
}

func seedReadingLog(t *testing.T, store *memory.Store, userID uuid.UUID, at time.Time, status domain.ReadingLogStatus) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, r domain.Repositories) error {
		return r.ReadingLogs.Create(ctx, &domain.ReadingLog{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    status,
			CreatedAt: at,
			UpdatedAt: at,
		})
	})
	if err != nil {
		t.Fatalf("seed reading log failed: %v", err)
	}
}
