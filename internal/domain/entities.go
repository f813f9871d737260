// Package domain defines the entities, repository contracts, and error
// taxonomy shared by the godlife services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the civil-date format used in idempotency keys and payloads.
const DateLayout = "2006-01-02"

// CivilDate truncates an instant to its UTC calendar day.
func CivilDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UserStatus enumerates account lifecycle states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the account record resolved from an external identity.
type User struct {
	ID         uuid.UUID
	ExternalID string
	Name       string
	Timezone   string
	Status     UserStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlanStatus enumerates exercise plan lifecycle states.
type PlanStatus string

const (
	PlanStatusDraft    PlanStatus = "DRAFT"
	PlanStatusActive   PlanStatus = "ACTIVE"
	PlanStatusDone     PlanStatus = "DONE"
	PlanStatusCanceled PlanStatus = "CANCELED"
)

// ExercisePlan is a per-day workout plan. At most one ACTIVE plan may exist
// per (user, target date); the store enforces this with a partial unique index.
type ExercisePlan struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TargetDate time.Time // UTC midnight
	Source     string
	Status     PlanStatus
	Summary    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ExerciseSession is one exercise within a plan, ordered by OrderNo.
type ExerciseSession struct {
	ID             uuid.UUID
	PlanID         uuid.UUID
	OrderNo        int
	ExerciseName   string
	BodyPart       *string
	TargetSets     int
	TargetReps     *int
	TargetWeightKg *float64
	TargetRestSec  *int
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetStatus enumerates per-set progress states.
type SetStatus string

const (
	SetStatusPending    SetStatus = "PENDING"
	SetStatusInProgress SetStatus = "IN_PROGRESS"
	SetStatusDone       SetStatus = "DONE"
	SetStatusSkipped    SetStatus = "SKIPPED"
	SetStatusFailed     SetStatus = "FAILED"
)

// Terminal reports whether the status permits no further mutation.
func (s SetStatus) Terminal() bool {
	return s == SetStatusDone || s == SetStatusSkipped || s == SetStatusFailed
}

// ExerciseSetState tracks a single set of a session. (SessionID, SetNo) is
// unique; once terminal the performed metrics are frozen.
type ExerciseSetState struct {
	ID                uuid.UUID
	SessionID         uuid.UUID
	SetNo             int
	Status            SetStatus
	PerformedReps     *int
	PerformedWeightKg *float64
	ActualRestSec     *int
	CompletedAt       *time.Time
	SkippedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReadingPlan holds a user's reading reminder settings. RemindTime is the
// wall-clock offset from local midnight.
type ReadingPlan struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RemindTime  time.Duration
	GoalMinutes int
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReadingLogStatus enumerates reading session outcomes.
type ReadingLogStatus string

const (
	ReadingLogStatusDone      ReadingLogStatus = "DONE"
	ReadingLogStatusSkipped   ReadingLogStatus = "SKIPPED"
	ReadingLogStatusAbandoned ReadingLogStatus = "ABANDONED"
)

// ReadingLog records one reading session outcome.
type ReadingLog struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ReadingPlanID *uuid.UUID
	BookTitle     *string
	StartAt       *time.Time
	EndAt         *time.Time
	PagesRead     *int
	Status        ReadingLogStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NotificationStatus enumerates delivery lifecycle states.
type NotificationStatus string

const (
	NotificationStatusScheduled      NotificationStatus = "SCHEDULED"
	NotificationStatusSent           NotificationStatus = "SENT"
	NotificationStatusAcknowledged   NotificationStatus = "ACKNOWLEDGED"
	NotificationStatusComplete       NotificationStatus = "COMPLETE"
	NotificationStatusFailed         NotificationStatus = "FAILED"
	NotificationStatusRetryScheduled NotificationStatus = "RETRY_SCHEDULED"
	NotificationStatusManualReview   NotificationStatus = "MANUAL_REVIEW"
)

// Reserved notification kinds.
const (
	KindExerciseStart        = "EXERCISE_START"
	KindExerciseNextSet      = "EXERCISE_NEXT_SET"
	KindReadingReminder      = "READING_REMINDER"
	KindReadingReminderRetry = "READING_REMINDER_RETRY"
)

// NotificationPayload carries the kind-specific context of a notification.
// Unused fields are omitted when serialized.
type NotificationPayload struct {
	PlanID             *uuid.UUID `json:"plan_id,omitempty"`
	SessionID          *uuid.UUID `json:"session_id,omitempty"`
	SetNo              *int       `json:"set_no,omitempty"`
	ReadingPlanID      *uuid.UUID `json:"reading_plan_id,omitempty"`
	ReferenceDate      string     `json:"reference_date,omitempty"`
	BaseNotificationID *uuid.UUID `json:"base_notification_id,omitempty"`
}

// Notification is a scheduled outbound message. IdempotencyKey is globally
// unique and identifies the intent of the scheduling request.
type Notification struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Kind           string
	RelatedID      *uuid.UUID
	Status         NotificationStatus
	ScheduleAt     time.Time
	SentAt         *time.Time
	RetryCount     int
	IdempotencyKey string
	Payload        NotificationPayload
	ReasonCode     *string
	FailureReason  *string
	LastErrorAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WebhookEvent is an inbound provider event. Dedup happens on
// (provider, idempotency key) and, when present, (provider, event id).
type WebhookEvent struct {
	ID             uuid.UUID
	Provider       string
	EventType      string
	UserID         *uuid.UUID
	IdempotencyKey string
	EventID        *string
	SchemaVersion  string
	RawPayload     []byte
	Processed      bool
	ReasonCode     *string
	RetryCount     int
	CreatedAt      time.Time
}

// OutboxStatus enumerates outbox delivery states.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusInFlight  OutboxStatus = "IN_FLIGHT"
	OutboxStatusCompleted OutboxStatus = "COMPLETED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is a domain event appended in the same transaction as the state
// change it describes. It references its aggregate logically, without a
// foreign key, and is drained by a separate dispatcher.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DailySummary is the per-day KPI snapshot upserted by (user, date).
type DailySummary struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	SummaryDate            time.Time // UTC midnight
	Timezone               string
	ExerciseTotalSets      int
	ExerciseDoneSets       int
	ExerciseCompletionRate float64
	ReadingCompleted       bool
	StreakDays             int
	Trend                  string
	ComputedAt             time.Time
}

// WeeklyPoint is one day's slice of a weekly summary.
type WeeklyPoint struct {
	Date                   string  `json:"date"`
	ExerciseCompletionRate float64 `json:"exercise_completion_rate"`
	ReadingCompleted       bool    `json:"reading_completed"`
}

// WeeklySummary is the per-week KPI snapshot upserted by (user, start date).
type WeeklySummary struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	StartDate             time.Time // UTC midnight
	EndDate               time.Time
	Timezone              string
	DailyPoints           []WeeklyPoint
	WeekAvgCompletionRate float64
	StreakDays            int
	Trend                 string
	ComputedAt            time.Time
}
