package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository captures account persistence operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	Save(ctx context.Context, user *User) error
}

// ExercisePlanRepository captures plan persistence operations. Create returns
// ErrPlanConflict when the ACTIVE-plan partial unique index is violated.
type ExercisePlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ExercisePlan, error)
	GetActiveByUserAndDate(ctx context.Context, userID uuid.UUID, targetDate time.Time) (*ExercisePlan, error)
	Create(ctx context.Context, plan *ExercisePlan) error
}

// ExerciseSessionRepository captures session persistence operations.
type ExerciseSessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ExerciseSession, error)
	ListByPlan(ctx context.Context, planID uuid.UUID) ([]ExerciseSession, error)
	Create(ctx context.Context, session *ExerciseSession) error
}

// ExerciseSetStateRepository captures set-state persistence operations.
type ExerciseSetStateRepository interface {
	Get(ctx context.Context, sessionID uuid.UUID, setNo int) (*ExerciseSetState, error)
	ListPending(ctx context.Context, sessionID uuid.UUID) ([]ExerciseSetState, error)
	Create(ctx context.Context, state *ExerciseSetState) error
	Update(ctx context.Context, state *ExerciseSetState) error
}

// ReadingPlanRepository captures reading plan persistence operations.
// GetByUser returns the latest plan by creation time.
type ReadingPlanRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*ReadingPlan, error)
	Save(ctx context.Context, plan *ReadingPlan) error
}

// ReadingLogRepository captures reading log persistence operations. List
// filters on created_at within [from, to).
type ReadingLogRepository interface {
	List(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]ReadingLog, error)
	Create(ctx context.Context, log *ReadingLog) error
}

// NotificationRepository captures notification persistence operations.
// Create returns ErrIdempotencyConflict on a duplicate idempotency key.
type NotificationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *NotificationStatus, limit int) ([]Notification, error)
	Create(ctx context.Context, notification *Notification) error
	Update(ctx context.Context, notification *Notification) error
}

// WebhookEventRepository captures webhook event persistence operations.
type WebhookEventRepository interface {
	GetByProviderAndKey(ctx context.Context, provider, idempotencyKey string) (*WebhookEvent, error)
	GetByProviderAndEventID(ctx context.Context, provider, eventID string) (*WebhookEvent, error)
	Create(ctx context.Context, event *WebhookEvent) error
}

// OutboxRepository captures outbox operations. Append participates in the
// ambient transaction; LeasePending flips the earliest PENDING rows to
// IN_FLIGHT and may use SKIP LOCKED semantics for concurrent drainers.
type OutboxRepository interface {
	Append(ctx context.Context, event OutboxEvent) error
	LeasePending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkComplete(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// SummaryRepository captures summary snapshot operations.
type SummaryRepository interface {
	GetDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*DailySummary, error)
	UpsertDaily(ctx context.Context, summary *DailySummary) error
	GetWeekly(ctx context.Context, userID uuid.UUID, startDate time.Time) (*WeeklySummary, error)
	UpsertWeekly(ctx context.Context, summary *WeeklySummary) error
	AggregateExerciseSets(ctx context.Context, userID uuid.UUID, date time.Time) (total, done int, err error)
	HasReadingCompletion(ctx context.Context, userID uuid.UUID, fromUTC, toUTC time.Time) (bool, error)
}

// Repositories bundles the per-aggregate contracts bound to one transaction.
type Repositories struct {
	Users         UserRepository
	Plans         ExercisePlanRepository
	Sessions      ExerciseSessionRepository
	SetStates     ExerciseSetStateRepository
	ReadingPlans  ReadingPlanRepository
	ReadingLogs   ReadingLogRepository
	Notifications NotificationRepository
	Webhooks      WebhookEventRepository
	Outbox        OutboxRepository
	Summaries     SummaryRepository
}

// Store opens one transaction per inbound operation. Every write performed by
// fn commits or rolls back as a unit; services never commit themselves.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
