// Package reading schedules timezone-aware reading reminders with a
// conditional retry. The idempotency-key lookup runs before every policy gate
// so a replay returns "duplicate" even after the underlying state changed.
package reading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/notification"
)

const (
	retryDelay       = 30 * time.Minute
	fallbackTimezone = "Asia/Seoul"
)

// Outcome results. Duplicate and the skipped variants are success paths, not
// errors; callers branch on Result.
const (
	ResultCreated          = "created"
	ResultDuplicate        = "duplicate"
	ResultSkippedDisabled  = "skipped_disabled"
	ResultSkippedCompleted = "skipped_completed"
)

// DailyReminderInput captures a base reminder request.
type DailyReminderInput struct {
	UserID         uuid.UUID
	ReferenceDate  time.Time
	IdempotencyKey string
}

// RetryReminderInput captures a conditional retry request.
type RetryReminderInput struct {
	UserID             uuid.UUID
	ReferenceDate      time.Time
	BaseNotificationID uuid.UUID
	IdempotencyKey     string
}

// Outcome reports the scheduling result and, when present, the notification.
type Outcome struct {
	Result       string
	Notification *domain.Notification
}

// Service schedules reading reminders behind the unit of work.
type Service struct {
	store domain.Store
}

// NewService constructs a Service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// ScheduleDailyReminder schedules the base reminder for the reference date at
// the plan's remind time, interpreted as wall clock in the user's timezone and
// persisted as a UTC instant.
func (s *Service) ScheduleDailyReminder(ctx context.Context, in DailyReminderInput) (*Outcome, error) {
	var outcome *Outcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		referenceDate := domain.CivilDate(in.ReferenceDate)
		key := in.IdempotencyKey
		if key == "" {
			key = dailyKey(in.UserID, referenceDate)
		}

		existing, err := r.Notifications.GetByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := validateScope(existing, in.UserID, domain.KindReadingReminder, referenceDate, nil); err != nil {
				return err
			}
			outcome = &Outcome{Result: ResultDuplicate, Notification: existing}
			return nil
		}

		plan, err := r.ReadingPlans.GetByUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.ErrReadingPlanNotFound
		}
		if !plan.Enabled {
			outcome = &Outcome{Result: ResultSkippedDisabled}
			return nil
		}

		scheduleAt, err := s.resolveScheduleAt(ctx, r, in.UserID, referenceDate, plan.RemindTime)
		if err != nil {
			return err
		}

		created, _, err := notification.CreatePendingTx(ctx, r, notification.CreateInput{
			UserID:         in.UserID,
			Kind:           domain.KindReadingReminder,
			RelatedID:      &plan.ID,
			ScheduleAt:     scheduleAt,
			IdempotencyKey: key,
			Payload: domain.NotificationPayload{
				ReadingPlanID: &plan.ID,
				ReferenceDate: referenceDate.Format(domain.DateLayout),
			},
		})
		if err != nil {
			return err
		}
		outcome = &Outcome{Result: ResultCreated, Notification: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ScheduleRetryIfIncomplete schedules a retry 30 minutes after the base
// reminder unless the user already finished (or skipped) reading that day.
func (s *Service) ScheduleRetryIfIncomplete(ctx context.Context, in RetryReminderInput) (*Outcome, error) {
	var outcome *Outcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		referenceDate := domain.CivilDate(in.ReferenceDate)
		key := in.IdempotencyKey
		if key == "" {
			key = retryKey(in.UserID, referenceDate)
		}

		existing, err := r.Notifications.GetByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := validateScope(existing, in.UserID, domain.KindReadingReminderRetry, referenceDate, &in.BaseNotificationID); err != nil {
				return err
			}
			outcome = &Outcome{Result: ResultDuplicate, Notification: existing}
			return nil
		}

		plan, err := r.ReadingPlans.GetByUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.ErrReadingPlanNotFound
		}
		if !plan.Enabled {
			outcome = &Outcome{Result: ResultSkippedDisabled}
			return nil
		}

		completed, err := hasCompletionOrSkip(ctx, r, in.UserID, referenceDate)
		if err != nil {
			return err
		}
		if completed {
			outcome = &Outcome{Result: ResultSkippedCompleted}
			return nil
		}

		base, err := r.Notifications.GetByID(ctx, in.BaseNotificationID)
		if err != nil {
			return err
		}
		if base == nil {
			return fmt.Errorf("%w: base notification not found", domain.ErrValidation)
		}
		if base.UserID != in.UserID {
			return fmt.Errorf("%w: base notification does not belong to user", domain.ErrValidation)
		}
		if base.Kind != domain.KindReadingReminder {
			return fmt.Errorf("%w: base notification kind must be READING_REMINDER", domain.ErrValidation)
		}
		if !domain.CivilDate(base.ScheduleAt).Equal(referenceDate) {
			return fmt.Errorf("%w: base notification date does not match reference_date", domain.ErrValidation)
		}

		created, _, err := notification.CreatePendingTx(ctx, r, notification.CreateInput{
			UserID:         in.UserID,
			Kind:           domain.KindReadingReminderRetry,
			RelatedID:      &plan.ID,
			ScheduleAt:     base.ScheduleAt.Add(retryDelay),
			IdempotencyKey: key,
			Payload: domain.NotificationPayload{
				ReadingPlanID:      &plan.ID,
				ReferenceDate:      referenceDate.Format(domain.DateLayout),
				BaseNotificationID: &in.BaseNotificationID,
			},
		})
		if err != nil {
			return err
		}
		outcome = &Outcome{Result: ResultCreated, Notification: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// resolveScheduleAt combines the reference date with the remind offset in the
// user's zone. Unknown or missing zones fall back to Asia/Seoul.
func (s *Service) resolveScheduleAt(ctx context.Context, r domain.Repositories, userID uuid.UUID, referenceDate time.Time, remind time.Duration) (time.Time, error) {
	zone := fallbackTimezone
	user, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if user != nil && user.Timezone != "" {
		if _, err := time.LoadLocation(user.Timezone); err == nil {
			zone = user.Timezone
		}
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	localMidnight := time.Date(referenceDate.Year(), referenceDate.Month(), referenceDate.Day(), 0, 0, 0, 0, loc)
	return localMidnight.Add(remind).UTC(), nil
}

func hasCompletionOrSkip(ctx context.Context, r domain.Repositories, userID uuid.UUID, referenceDate time.Time) (bool, error) {
	logs, err := r.ReadingLogs.List(ctx, userID, referenceDate, referenceDate.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	for _, log := range logs {
		if log.Status == domain.ReadingLogStatusDone || log.Status == domain.ReadingLogStatusSkipped {
			return true, nil
		}
	}
	return false, nil
}

// validateScope rejects a key collision whose stored scope (user, kind,
// reference date, base notification) differs from the request.
func validateScope(existing *domain.Notification, userID uuid.UUID, kind string, referenceDate time.Time, baseNotificationID *uuid.UUID) error {
	baseMismatch := false
	if baseNotificationID != nil {
		baseMismatch = existing.Payload.BaseNotificationID == nil ||
			*existing.Payload.BaseNotificationID != *baseNotificationID
	}
	if existing.UserID != userID ||
		existing.Kind != kind ||
		existing.Payload.ReferenceDate != referenceDate.Format(domain.DateLayout) ||
		baseMismatch {
		return fmt.Errorf("%w: idempotency key is already used by another request scope", domain.ErrValidation)
	}
	return nil
}

func dailyKey(userID uuid.UUID, referenceDate time.Time) string {
	return fmt.Sprintf("reading:reminder:%s:%s", userID, referenceDate.Format(domain.DateLayout))
}

func retryKey(userID uuid.UUID, referenceDate time.Time) string {
	return fmt.Sprintf("reading:reminder:retry:%s:%s", userID, referenceDate.Format(domain.DateLayout))
}
