package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/godlife/internal/domain"
)

type planRepo struct {
	tx pgx.Tx
}

const planColumns = `id, user_id, target_date, source, status, summary, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.ExercisePlan, error) {
	var p domain.ExercisePlan
	err := row.Scan(&p.ID, &p.UserID, &p.TargetDate, &p.Source, &p.Status, &p.Summary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.TargetDate = domain.CivilDate(p.TargetDate)
	return &p, nil
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExercisePlan, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM exercise_plans WHERE id=$1`, id)
	return scanPlan(row)
}

func (r *planRepo) GetActiveByUserAndDate(ctx context.Context, userID uuid.UUID, targetDate time.Time) (*domain.ExercisePlan, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM exercise_plans
        WHERE user_id=$1 AND target_date=$2 AND status='ACTIVE'`, userID, targetDate)
	return scanPlan(row)
}

func (r *planRepo) Create(ctx context.Context, plan *domain.ExercisePlan) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO exercise_plans (id, user_id, target_date, source, status, summary, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		plan.ID, plan.UserID, plan.TargetDate, plan.Source, plan.Status, plan.Summary, plan.CreatedAt, plan.UpdatedAt)
	return translateUnique(err)
}

type sessionRepo struct {
	tx pgx.Tx
}

const sessionColumns = `id, plan_id, order_no, exercise_name, body_part, target_sets, target_reps,
        target_weight_kg, target_rest_sec, notes, created_at, updated_at`

func scanSession(row pgx.Row) (*domain.ExerciseSession, error) {
	var s domain.ExerciseSession
	err := row.Scan(&s.ID, &s.PlanID, &s.OrderNo, &s.ExerciseName, &s.BodyPart, &s.TargetSets,
		&s.TargetReps, &s.TargetWeightKg, &s.TargetRestSec, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExerciseSession, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM exercise_sessions WHERE id=$1`, id)
	return scanSession(row)
}

func (r *sessionRepo) ListByPlan(ctx context.Context, planID uuid.UUID) ([]domain.ExerciseSession, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+sessionColumns+` FROM exercise_sessions
        WHERE plan_id=$1 ORDER BY order_no`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExerciseSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *session)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.ExerciseSession) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO exercise_sessions
        (id, plan_id, order_no, exercise_name, body_part, target_sets, target_reps, target_weight_kg, target_rest_sec, notes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		session.ID, session.PlanID, session.OrderNo, session.ExerciseName, session.BodyPart,
		session.TargetSets, session.TargetReps, session.TargetWeightKg, session.TargetRestSec,
		session.Notes, session.CreatedAt, session.UpdatedAt)
	return translateUnique(err)
}

type setStateRepo struct {
	tx pgx.Tx
}

const setStateColumns = `id, session_id, set_no, status, performed_reps, performed_weight_kg,
        actual_rest_sec, completed_at, skipped_at, created_at, updated_at`

func scanSetState(row pgx.Row) (*domain.ExerciseSetState, error) {
	var s domain.ExerciseSetState
	err := row.Scan(&s.ID, &s.SessionID, &s.SetNo, &s.Status, &s.PerformedReps, &s.PerformedWeightKg,
		&s.ActualRestSec, &s.CompletedAt, &s.SkippedAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *setStateRepo) Get(ctx context.Context, sessionID uuid.UUID, setNo int) (*domain.ExerciseSetState, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+setStateColumns+` FROM exercise_set_states
        WHERE session_id=$1 AND set_no=$2`, sessionID, setNo)
	return scanSetState(row)
}

func (r *setStateRepo) ListPending(ctx context.Context, sessionID uuid.UUID) ([]domain.ExerciseSetState, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+setStateColumns+` FROM exercise_set_states
        WHERE session_id=$1 AND status='PENDING' ORDER BY set_no`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExerciseSetState
	for rows.Next() {
		state, err := scanSetState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *state)
	}
	return out, rows.Err()
}

func (r *setStateRepo) Create(ctx context.Context, state *domain.ExerciseSetState) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO exercise_set_states
        (id, session_id, set_no, status, performed_reps, performed_weight_kg, actual_rest_sec, completed_at, skipped_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		state.ID, state.SessionID, state.SetNo, state.Status, state.PerformedReps,
		state.PerformedWeightKg, state.ActualRestSec, state.CompletedAt, state.SkippedAt,
		state.CreatedAt, state.UpdatedAt)
	return translateUnique(err)
}

func (r *setStateRepo) Update(ctx context.Context, state *domain.ExerciseSetState) error {
	_, err := r.tx.Exec(ctx, `UPDATE exercise_set_states SET
        status=$3, performed_reps=$4, performed_weight_kg=$5, actual_rest_sec=$6,
        completed_at=$7, skipped_at=$8, updated_at=$9
        WHERE session_id=$1 AND set_no=$2`,
		state.SessionID, state.SetNo, state.Status, state.PerformedReps, state.PerformedWeightKg,
		state.ActualRestSec, state.CompletedAt, state.SkippedAt, state.UpdatedAt)
	return err
}
