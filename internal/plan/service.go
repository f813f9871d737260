// Package plan implements exercise plan generation and set-result progression.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/notification"
	"example.com/godlife/internal/observability"
)

// sessionSeed is one entry of the fixed template used to materialize a plan.
type sessionSeed struct {
	orderNo        int
	exerciseName   string
	bodyPart       string
	targetSets     int
	targetReps     *int
	targetWeightKg *float64
	targetRestSec  *int
	notes          *string
}

var sessionSeeds = []sessionSeed{
	{
		orderNo:        1,
		exerciseName:   "Bench Press",
		bodyPart:       "chest",
		targetSets:     3,
		targetReps:     intPtr(10),
		targetWeightKg: floatPtr(30.0),
		targetRestSec:  intPtr(90),
	},
	{
		orderNo:        2,
		exerciseName:   "Barbell Row",
		bodyPart:       "back",
		targetSets:     3,
		targetReps:     intPtr(10),
		targetWeightKg: floatPtr(30.0),
		targetRestSec:  intPtr(90),
	},
	{
		orderNo:       3,
		exerciseName:  "Plank",
		bodyPart:      "core",
		targetSets:    3,
		targetRestSec: intPtr(60),
		notes:         strPtr("Hold for 45 seconds per set."),
	},
}

// GeneratePlanInput captures a plan generation request.
type GeneratePlanInput struct {
	UserID     uuid.UUID
	TargetDate time.Time
	Source     string
}

// SetResultInput captures a set-result submission.
type SetResultInput struct {
	PlanID            uuid.UUID
	SessionID         uuid.UUID
	SetNo             int
	Result            string
	PerformedReps     *int
	PerformedWeightKg *float64
	ActualRestSec     *int
	RequestTimestamp  *time.Time
}

// SetResultOutcome reports the applied state and, when a set remains, the
// follow-up notification.
type SetResultOutcome struct {
	State            *domain.ExerciseSetState
	NextPendingSetNo *int
	NotificationID   *uuid.UUID
}

// Service orchestrates the exercise plan workflows.
type Service struct {
	store domain.Store
}

// NewService constructs a Service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// GeneratePlan creates an ACTIVE plan for the user and target date, seeds its
// sessions and pending set states from the fixed template, and schedules the
// EXERCISE_START notification. A concurrent generation for the same user and
// date is serialized by the ACTIVE-plan partial unique index.
func (s *Service) GeneratePlan(ctx context.Context, in GeneratePlanInput) (*domain.ExercisePlan, error) {
	source, err := normalizeSource(in.Source)
	if err != nil {
		return nil, err
	}

	var saved *domain.ExercisePlan
	err = s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		targetDate := domain.CivilDate(in.TargetDate)
		existing, err := r.Plans.GetActiveByUserAndDate(ctx, in.UserID, targetDate)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrPlanConflict
		}

		now := time.Now().UTC()
		candidate := &domain.ExercisePlan{
			ID:         uuid.New(),
			UserID:     in.UserID,
			TargetDate: targetDate,
			Source:     source,
			Status:     domain.PlanStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.Plans.Create(ctx, candidate); err != nil {
			return err
		}

		var firstSession *domain.ExerciseSession
		for _, seed := range sessionSeeds {
			if err := seed.validate(); err != nil {
				return err
			}
			session := &domain.ExerciseSession{
				ID:             uuid.New(),
				PlanID:         candidate.ID,
				OrderNo:        seed.orderNo,
				ExerciseName:   seed.exerciseName,
				BodyPart:       strPtr(seed.bodyPart),
				TargetSets:     seed.targetSets,
				TargetReps:     seed.targetReps,
				TargetWeightKg: seed.targetWeightKg,
				TargetRestSec:  seed.targetRestSec,
				Notes:          seed.notes,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := r.Sessions.Create(ctx, session); err != nil {
				return err
			}
			if firstSession == nil {
				firstSession = session
			}
			for setNo := 1; setNo <= seed.targetSets; setNo++ {
				state := &domain.ExerciseSetState{
					ID:        uuid.New(),
					SessionID: session.ID,
					SetNo:     setNo,
					Status:    domain.SetStatusPending,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := r.SetStates.Create(ctx, state); err != nil {
					return err
				}
			}
		}

		if firstSession != nil {
			setNo := 1
			_, _, err := notification.CreatePendingTx(ctx, r, notification.CreateInput{
				UserID:     candidate.UserID,
				Kind:       domain.KindExerciseStart,
				RelatedID:  &firstSession.ID,
				ScheduleAt: now,
				IdempotencyKey: fmt.Sprintf("exercise:start:%s:%s:set:1",
					candidate.ID, firstSession.ID),
				Payload: domain.NotificationPayload{
					PlanID:    &candidate.ID,
					SessionID: &firstSession.ID,
					SetNo:     &setNo,
				},
			})
			if err != nil {
				return err
			}
		}

		saved = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordPlanGenerated()
	return saved, nil
}

// SubmitSetResult applies a DONE or SKIPPED result in its own transaction.
func (s *Service) SubmitSetResult(ctx context.Context, in SetResultInput) (*SetResultOutcome, error) {
	var outcome *SetResultOutcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		var err error
		outcome, err = s.SubmitSetResultTx(ctx, r, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// SubmitSetResultTx applies a set result inside an ambient transaction. The
// webhook ingress composes this with its own insert so both commit together.
//
// A set already in DONE or SKIPPED is an idempotent no-op. Completing set N
// requires every set below N in the same session to be terminal; on DONE the
// next pending set is announced via an EXERCISE_NEXT_SET notification.
func (s *Service) SubmitSetResultTx(ctx context.Context, r domain.Repositories, in SetResultInput) (*SetResultOutcome, error) {
	session, err := r.Sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session not found", domain.ErrValidation)
	}
	if session.PlanID != in.PlanID {
		return nil, domain.ErrContextMismatch
	}
	if in.SetNo <= 0 {
		return nil, fmt.Errorf("%w: set_no must be greater than 0", domain.ErrValidation)
	}

	state, err := r.SetStates.Get(ctx, in.SessionID, in.SetNo)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: set state not found", domain.ErrValidation)
	}

	result := strings.ToUpper(strings.TrimSpace(in.Result))
	if result != string(domain.SetStatusDone) && result != string(domain.SetStatusSkipped) {
		return nil, fmt.Errorf("%w: result must be DONE or SKIPPED", domain.ErrValidation)
	}

	if state.Status == domain.SetStatusDone || state.Status == domain.SetStatusSkipped {
		return &SetResultOutcome{State: state}, nil
	}

	if err := s.checkOrdering(ctx, r, in.SessionID, in.SetNo); err != nil {
		return nil, err
	}

	occurredAt := time.Now().UTC()
	if in.RequestTimestamp != nil {
		occurredAt = in.RequestTimestamp.UTC()
	}
	state.UpdatedAt = occurredAt
	if result == string(domain.SetStatusDone) {
		state.Status = domain.SetStatusDone
		state.PerformedReps = in.PerformedReps
		state.PerformedWeightKg = in.PerformedWeightKg
		state.ActualRestSec = in.ActualRestSec
		state.CompletedAt = &occurredAt
		state.SkippedAt = nil
	} else {
		state.Status = domain.SetStatusSkipped
		state.SkippedAt = &occurredAt
		state.CompletedAt = nil
	}
	if err := r.SetStates.Update(ctx, state); err != nil {
		return nil, err
	}

	outcome := &SetResultOutcome{State: state}
	if result == string(domain.SetStatusDone) {
		next, err := s.nextPendingSet(ctx, r, in.SessionID, in.SetNo)
		if err != nil {
			return nil, err
		}
		if next != nil {
			plan, err := r.Plans.GetByID(ctx, in.PlanID)
			if err != nil {
				return nil, err
			}
			if plan != nil {
				nextNo := next.SetNo
				scheduled, _, err := notification.CreatePendingTx(ctx, r, notification.CreateInput{
					UserID:     plan.UserID,
					Kind:       domain.KindExerciseNextSet,
					RelatedID:  &in.SessionID,
					ScheduleAt: occurredAt,
					IdempotencyKey: fmt.Sprintf("exercise:next:%s:%s:set:%d",
						in.PlanID, in.SessionID, nextNo),
					Payload: domain.NotificationPayload{
						PlanID:    &in.PlanID,
						SessionID: &in.SessionID,
						SetNo:     &nextNo,
					},
				})
				if err != nil {
					return nil, err
				}
				outcome.NextPendingSetNo = &nextNo
				outcome.NotificationID = &scheduled.ID
			}
		}
	}

	observability.RecordSetResult(result)
	return outcome, nil
}

// CompleteActivePlan is a reserved transition; its preconditions are not
// settled yet, so it only verifies existence.
func (s *Service) CompleteActivePlan(ctx context.Context, planID uuid.UUID) (*domain.ExercisePlan, error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		existing, err := r.Plans.GetByID(ctx, planID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrPlanNotFound
		}
		return fmt.Errorf("%w: plan completion transition", domain.ErrNotImplemented)
	})
	return nil, err
}

// GetPlan loads a plan with its sessions and set states.
func (s *Service) GetPlan(ctx context.Context, planID uuid.UUID) (*domain.ExercisePlan, []domain.ExerciseSession, map[uuid.UUID][]domain.ExerciseSetState, error) {
	var (
		plan     *domain.ExercisePlan
		sessions []domain.ExerciseSession
		states   map[uuid.UUID][]domain.ExerciseSetState
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		var err error
		plan, err = r.Plans.GetByID(ctx, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return domain.ErrPlanNotFound
		}
		sessions, err = r.Sessions.ListByPlan(ctx, planID)
		if err != nil {
			return err
		}
		states = make(map[uuid.UUID][]domain.ExerciseSetState, len(sessions))
		for _, session := range sessions {
			all, err := listAllStates(ctx, r, session)
			if err != nil {
				return err
			}
			states[session.ID] = all
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return plan, sessions, states, nil
}

func listAllStates(ctx context.Context, r domain.Repositories, session domain.ExerciseSession) ([]domain.ExerciseSetState, error) {
	all := make([]domain.ExerciseSetState, 0, session.TargetSets)
	for setNo := 1; setNo <= session.TargetSets; setNo++ {
		state, err := r.SetStates.Get(ctx, session.ID, setNo)
		if err != nil {
			return nil, err
		}
		if state != nil {
			all = append(all, *state)
		}
	}
	return all, nil
}

func (s *Service) checkOrdering(ctx context.Context, r domain.Repositories, sessionID uuid.UUID, setNo int) error {
	for previous := 1; previous < setNo; previous++ {
		state, err := r.SetStates.Get(ctx, sessionID, previous)
		if err != nil {
			return err
		}
		if state == nil {
			return domain.ErrSetOrderViolation
		}
		if state.Status != domain.SetStatusDone && state.Status != domain.SetStatusSkipped {
			return domain.ErrSetOrderViolation
		}
	}
	return nil
}

func (s *Service) nextPendingSet(ctx context.Context, r domain.Repositories, sessionID uuid.UUID, after int) (*domain.ExerciseSetState, error) {
	pending, err := r.SetStates.ListPending(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var candidates []domain.ExerciseSetState
	for _, state := range pending {
		if state.SetNo > after {
			candidates = append(candidates, state)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].SetNo < candidates[j].SetNo })
	return &candidates[0], nil
}

func normalizeSource(source string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(source))
	switch normalized {
	case "rule", "llm":
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: source must be one of [llm, rule]", domain.ErrInvalidSource)
	}
}

func (s sessionSeed) validate() error {
	if s.targetSets <= 0 {
		return fmt.Errorf("%w: target_sets must be greater than 0", domain.ErrValidation)
	}
	if s.targetReps != nil && *s.targetReps <= 0 {
		return fmt.Errorf("%w: target_reps must be greater than 0", domain.ErrValidation)
	}
	if s.targetWeightKg != nil && *s.targetWeightKg < 0 {
		return fmt.Errorf("%w: target_weight_kg must not be negative", domain.ErrValidation)
	}
	if s.targetRestSec != nil && *s.targetRestSec < 0 {
		return fmt.Errorf("%w: target_rest_sec must not be negative", domain.ErrValidation)
	}
	return nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
