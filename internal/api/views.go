package api

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/plan"
	"example.com/godlife/internal/reading"
)

// ResolveUserRequest is the payload for POST /v1/auth/resolve.
type ResolveUserRequest struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

// Validate ensures request correctness.
func (r ResolveUserRequest) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return errors.New("external_id is required")
	}
	return nil
}

// ResolveUserResponse describes the resolved account.
type ResolveUserResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Timezone   string    `json:"timezone"`
	Created    bool      `json:"created"`
}

// GeneratePlanRequest is the payload for POST /v1/plans/generate.
type GeneratePlanRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	TargetDate string    `json:"target_date"`
	Source     string    `json:"source,omitempty"`
}

// Validate ensures request correctness.
func (r GeneratePlanRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.TargetDate) == "" {
		return errors.New("target_date is required")
	}
	return nil
}

// SetResultRequest is the payload for the set-result endpoint.
type SetResultRequest struct {
	Result            string     `json:"result"`
	PerformedReps     *int       `json:"performed_reps,omitempty"`
	PerformedWeightKg *float64   `json:"performed_weight_kg,omitempty"`
	ActualRestSec     *int       `json:"actual_rest_sec,omitempty"`
	RequestTimestamp  *time.Time `json:"request_timestamp,omitempty"`
}

// Validate ensures request correctness.
func (r SetResultRequest) Validate() error {
	if strings.TrimSpace(r.Result) == "" {
		return errors.New("result is required")
	}
	return nil
}

// DailyReminderRequest is the payload for POST /v1/reading/reminders/base.
type DailyReminderRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	ReferenceDate  string    `json:"reference_date"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// Validate ensures request correctness.
func (r DailyReminderRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.ReferenceDate) == "" {
		return errors.New("reference_date is required")
	}
	return nil
}

// RetryReminderRequest is the payload for POST /v1/reading/reminders/retry.
type RetryReminderRequest struct {
	UserID             uuid.UUID `json:"user_id"`
	ReferenceDate      string    `json:"reference_date"`
	BaseNotificationID uuid.UUID `json:"base_notification_id"`
	IdempotencyKey     string    `json:"idempotency_key,omitempty"`
}

// Validate ensures request correctness.
func (r RetryReminderRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.ReferenceDate) == "" {
		return errors.New("reference_date is required")
	}
	if r.BaseNotificationID == uuid.Nil {
		return errors.New("base_notification_id is required")
	}
	return nil
}

// WebhookRequest is the payload for POST /v1/webhooks/{provider}. The
// set-result fields are optional; when all four are present the event carries
// an embedded set dispatch.
type WebhookRequest struct {
	Provider          string     `json:"provider,omitempty"`
	EventType         string     `json:"event_type"`
	EventID           *string    `json:"event_id,omitempty"`
	UserID            *uuid.UUID `json:"user_id,omitempty"`
	IdempotencyKey    string     `json:"idempotency_key,omitempty"`
	PlanID            *uuid.UUID `json:"plan_id,omitempty"`
	SessionID         *uuid.UUID `json:"session_id,omitempty"`
	SetNo             *int       `json:"set_no,omitempty"`
	Result            *string    `json:"result,omitempty"`
	PerformedReps     *int       `json:"performed_reps,omitempty"`
	PerformedWeightKg *float64   `json:"performed_weight_kg,omitempty"`
	ActualRestSec     *int       `json:"actual_rest_sec,omitempty"`
}

// Validate ensures request correctness.
func (r WebhookRequest) Validate() error {
	if strings.TrimSpace(r.EventType) == "" {
		return errors.New("event_type is required")
	}
	return nil
}

// WebhookResponse reports the dedup outcome.
type WebhookResponse struct {
	Result  string    `json:"result"`
	EventID uuid.UUID `json:"event_id"`
}

// RetryNotificationRequest is the payload for POST /v1/notifications/retry.
type RetryNotificationRequest struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// PlanSummaryView exposes the plan header.
type PlanSummaryView struct {
	PlanID     uuid.UUID `json:"plan_id"`
	UserID     uuid.UUID `json:"user_id"`
	TargetDate string    `json:"target_date"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetStateView exposes one set of a session.
type SetStateView struct {
	SetNo             int        `json:"set_no"`
	Status            string     `json:"status"`
	PerformedReps     *int       `json:"performed_reps,omitempty"`
	PerformedWeightKg *float64   `json:"performed_weight_kg,omitempty"`
	ActualRestSec     *int       `json:"actual_rest_sec,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	SkippedAt         *time.Time `json:"skipped_at,omitempty"`
}

// SessionView exposes one exercise of a plan with its sets.
type SessionView struct {
	SessionID      uuid.UUID      `json:"session_id"`
	OrderNo        int            `json:"order_no"`
	ExerciseName   string         `json:"exercise_name"`
	BodyPart       *string        `json:"body_part,omitempty"`
	TargetSets     int            `json:"target_sets"`
	TargetReps     *int           `json:"target_reps,omitempty"`
	TargetWeightKg *float64       `json:"target_weight_kg,omitempty"`
	TargetRestSec  *int           `json:"target_rest_sec,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
	Sets           []SetStateView `json:"sets"`
}

// PlanDetailView exposes a plan with its sessions and set states.
type PlanDetailView struct {
	PlanSummaryView
	Sessions []SessionView `json:"sessions"`
}

// SetResultView reports the applied transition.
type SetResultView struct {
	SetNo            int        `json:"set_no"`
	Status           string     `json:"status"`
	NextPendingSetNo *int       `json:"next_pending_set_no,omitempty"`
	NotificationID   *uuid.UUID `json:"notification_id,omitempty"`
}

// ReminderView reports a reminder scheduling outcome.
type ReminderView struct {
	Result         string     `json:"result"`
	NotificationID *uuid.UUID `json:"notification_id,omitempty"`
	ScheduleAt     *time.Time `json:"schedule_at,omitempty"`
}

// NotificationView exposes a notification row.
type NotificationView struct {
	NotificationID uuid.UUID                  `json:"notification_id"`
	UserID         uuid.UUID                  `json:"user_id"`
	Kind           string                     `json:"kind"`
	Status         string                     `json:"status"`
	ScheduleAt     time.Time                  `json:"schedule_at"`
	RetryCount     int                        `json:"retry_count"`
	IdempotencyKey string                     `json:"idempotency_key"`
	Payload        domain.NotificationPayload `json:"payload"`
}

// ListNotificationsResponse packages list results.
type ListNotificationsResponse struct {
	Items []NotificationView `json:"items"`
}

// DailySummaryView exposes the daily snapshot.
type DailySummaryView struct {
	UserID                 uuid.UUID `json:"user_id"`
	Date                   string    `json:"date"`
	Timezone               string    `json:"timezone"`
	ExerciseTotalSets      int       `json:"exercise_total_sets"`
	ExerciseDoneSets       int       `json:"exercise_done_sets"`
	ExerciseCompletionRate float64   `json:"exercise_completion_rate"`
	ReadingCompleted       bool      `json:"reading_completed"`
	StreakDays             int       `json:"streak_days"`
	Trend                  string    `json:"trend"`
	ComputedAt             time.Time `json:"computed_at"`
}

// WeeklySummaryView exposes the weekly snapshot.
type WeeklySummaryView struct {
	UserID                uuid.UUID            `json:"user_id"`
	StartDate             string               `json:"start_date"`
	EndDate               string               `json:"end_date"`
	Timezone              string               `json:"timezone"`
	DailyPoints           []domain.WeeklyPoint `json:"daily_points"`
	WeekAvgCompletionRate float64              `json:"week_avg_completion_rate"`
	StreakDays            int                  `json:"streak_days"`
	Trend                 string               `json:"trend"`
	ComputedAt            time.Time            `json:"computed_at"`
}

func toPlanSummaryView(p domain.ExercisePlan) PlanSummaryView {
	return PlanSummaryView{
		PlanID:     p.ID,
		UserID:     p.UserID,
		TargetDate: p.TargetDate.Format(domain.DateLayout),
		Source:     p.Source,
		Status:     string(p.Status),
		CreatedAt:  p.CreatedAt,
	}
}

func toPlanDetailView(p domain.ExercisePlan, sessions []domain.ExerciseSession, states map[uuid.UUID][]domain.ExerciseSetState) PlanDetailView {
	view := PlanDetailView{
		PlanSummaryView: toPlanSummaryView(p),
		Sessions:        make([]SessionView, 0, len(sessions)),
	}
	for _, session := range sessions {
		sv := SessionView{
			SessionID:      session.ID,
			OrderNo:        session.OrderNo,
			ExerciseName:   session.ExerciseName,
			BodyPart:       session.BodyPart,
			TargetSets:     session.TargetSets,
			TargetReps:     session.TargetReps,
			TargetWeightKg: session.TargetWeightKg,
			TargetRestSec:  session.TargetRestSec,
			Notes:          session.Notes,
			Sets:           make([]SetStateView, 0, len(states[session.ID])),
		}
		for _, state := range states[session.ID] {
			sv.Sets = append(sv.Sets, SetStateView{
				SetNo:             state.SetNo,
				Status:            string(state.Status),
				PerformedReps:     state.PerformedReps,
				PerformedWeightKg: state.PerformedWeightKg,
				ActualRestSec:     state.ActualRestSec,
				CompletedAt:       state.CompletedAt,
				SkippedAt:         state.SkippedAt,
			})
		}
		view.Sessions = append(view.Sessions, sv)
	}
	return view
}

func toSetResultView(outcome *plan.SetResultOutcome) SetResultView {
	return SetResultView{
		SetNo:            outcome.State.SetNo,
		Status:           string(outcome.State.Status),
		NextPendingSetNo: outcome.NextPendingSetNo,
		NotificationID:   outcome.NotificationID,
	}
}

func toReminderView(outcome *reading.Outcome) ReminderView {
	view := ReminderView{Result: outcome.Result}
	if outcome.Notification != nil {
		view.NotificationID = &outcome.Notification.ID
		at := outcome.Notification.ScheduleAt
		view.ScheduleAt = &at
	}
	return view
}

func toNotificationView(n domain.Notification) NotificationView {
	return NotificationView{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Kind:           n.Kind,
		Status:         string(n.Status),
		ScheduleAt:     n.ScheduleAt,
		RetryCount:     n.RetryCount,
		IdempotencyKey: n.IdempotencyKey,
		Payload:        n.Payload,
	}
}

func toDailySummaryView(s domain.DailySummary) DailySummaryView {
	return DailySummaryView{
		UserID:                 s.UserID,
		Date:                   s.SummaryDate.Format(domain.DateLayout),
		Timezone:               s.Timezone,
		ExerciseTotalSets:      s.ExerciseTotalSets,
		ExerciseDoneSets:       s.ExerciseDoneSets,
		ExerciseCompletionRate: s.ExerciseCompletionRate,
		ReadingCompleted:       s.ReadingCompleted,
		StreakDays:             s.StreakDays,
		Trend:                  s.Trend,
		ComputedAt:             s.ComputedAt,
	}
}

func toWeeklySummaryView(s domain.WeeklySummary) WeeklySummaryView {
	return WeeklySummaryView{
		UserID:                s.UserID,
		StartDate:             s.StartDate.Format(domain.DateLayout),
		EndDate:               s.EndDate.Format(domain.DateLayout),
		Timezone:              s.Timezone,
		DailyPoints:           s.DailyPoints,
		WeekAvgCompletionRate: s.WeekAvgCompletionRate,
		StreakDays:            s.StreakDays,
		Trend:                 s.Trend,
		ComputedAt:            s.ComputedAt,
	}
}
