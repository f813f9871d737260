// Package notification schedules outbound notifications with idempotency-key
// dedup and appends outbox events in the same transaction as every state change.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/observability"
)

// CreateInput captures a pending-notification request.
type CreateInput struct {
	UserID         uuid.UUID
	Kind           string
	RelatedID      *uuid.UUID
	ScheduleAt     time.Time
	IdempotencyKey string
	Payload        domain.NotificationPayload
}

// Service exposes the notification operations behind the unit of work.
type Service struct {
	store domain.Store
}

// NewService constructs a Service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// CreatePendingNotification schedules a notification in its own transaction.
// The bool reports whether a new row was created.
func (s *Service) CreatePendingNotification(ctx context.Context, in CreateInput) (*domain.Notification, bool, error) {
	var (
		saved   *domain.Notification
		created bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		var err error
		saved, created, err = CreatePendingTx(ctx, r, in)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

// MarkAsRetried bumps the retry counter, re-queues the notification for
// immediate delivery, and records a retry outbox event. Returns nil when the
// notification does not exist.
func (s *Service) MarkAsRetried(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var saved *domain.Notification
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		existing, err := r.Notifications.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}

		existing.RetryCount++
		existing.Status = domain.NotificationStatusRetryScheduled
		existing.ScheduleAt = time.Now().UTC()
		if err := r.Notifications.Update(ctx, existing); err != nil {
			return err
		}

		event, err := domain.NewOutboxEvent(
			domain.AggregateNotification,
			existing.ID,
			domain.EventNotificationRetryScheduled,
			domain.NotificationRetryScheduled{
				NotificationID: existing.ID,
				RetryCount:     existing.RetryCount,
			},
		)
		if err != nil {
			return err
		}
		if err := r.Outbox.Append(ctx, event); err != nil {
			return err
		}
		saved = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// List returns the user's notifications, newest schedule first, optionally
// filtered by status.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status *domain.NotificationStatus, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Notification
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		var err error
		out, err = r.Notifications.ListByUser(ctx, userID, status, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePendingTx schedules a notification inside an ambient transaction.
// A notification that already exists for the effective idempotency key is
// returned unchanged and no outbox event is appended.
func CreatePendingTx(ctx context.Context, r domain.Repositories, in CreateInput) (*domain.Notification, bool, error) {
	key := in.IdempotencyKey
	if key == "" {
		key = deriveKey(in)
	}

	existing, err := r.Notifications.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	candidate := &domain.Notification{
		ID:             uuid.New(),
		UserID:         in.UserID,
		Kind:           in.Kind,
		RelatedID:      in.RelatedID,
		Status:         domain.NotificationStatusScheduled,
		ScheduleAt:     in.ScheduleAt,
		RetryCount:     0,
		IdempotencyKey: key,
		Payload:        in.Payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.Notifications.Create(ctx, candidate); err != nil {
		// A concurrent request won the insert race; the unique constraint on
		// the key is the arbiter, so surface the winner instead of failing.
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			winner, lookupErr := r.Notifications.GetByIdempotencyKey(ctx, key)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}

	event, err := domain.NewOutboxEvent(
		domain.AggregateNotification,
		candidate.ID,
		domain.EventNotificationScheduled,
		domain.NotificationScheduled{
			NotificationID: candidate.ID,
			Kind:           candidate.Kind,
			ScheduleAt:     candidate.ScheduleAt,
		},
	)
	if err != nil {
		return nil, false, err
	}
	if err := r.Outbox.Append(ctx, event); err != nil {
		return nil, false, err
	}

	observability.RecordNotificationScheduled(candidate.Kind)
	return candidate, true, nil
}

func deriveKey(in CreateInput) string {
	related := ""
	if in.RelatedID != nil {
		related = in.RelatedID.String()
	}
	return fmt.Sprintf("notification:%s:%s:%s:%s",
		in.Kind, in.UserID, related, in.ScheduleAt.UTC().Format(time.RFC3339))
}
