package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/godlife/internal/domain"
)

type summaryRepo struct {
	tx pgx.Tx
}

const dailySummaryColumns = `id, user_id, summary_date, timezone, exercise_total_sets,
        exercise_done_sets, exercise_completion_rate, reading_completed, streak_days, trend, computed_at`

func (r *summaryRepo) GetDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailySummary, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+dailySummaryColumns+` FROM daily_summaries
        WHERE user_id=$1 AND summary_date=$2`, userID, date)

	var s domain.DailySummary
	err := row.Scan(&s.ID, &s.UserID, &s.SummaryDate, &s.Timezone, &s.ExerciseTotalSets,
		&s.ExerciseDoneSets, &s.ExerciseCompletionRate, &s.ReadingCompleted, &s.StreakDays,
		&s.Trend, &s.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.SummaryDate = domain.CivilDate(s.SummaryDate)
	return &s, nil
}

func (r *summaryRepo) UpsertDaily(ctx context.Context, s *domain.DailySummary) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO daily_summaries
        (id, user_id, summary_date, timezone, exercise_total_sets, exercise_done_sets,
         exercise_completion_rate, reading_completed, streak_days, trend, computed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (user_id, summary_date) DO UPDATE SET
            timezone=EXCLUDED.timezone,
            exercise_total_sets=EXCLUDED.exercise_total_sets,
            exercise_done_sets=EXCLUDED.exercise_done_sets,
            exercise_completion_rate=EXCLUDED.exercise_completion_rate,
            reading_completed=EXCLUDED.reading_completed,
            streak_days=EXCLUDED.streak_days,
            trend=EXCLUDED.trend,
            computed_at=EXCLUDED.computed_at`,
		s.ID, s.UserID, s.SummaryDate, s.Timezone, s.ExerciseTotalSets, s.ExerciseDoneSets,
		s.ExerciseCompletionRate, s.ReadingCompleted, s.StreakDays, s.Trend, s.ComputedAt)
	return err
}

const weeklySummaryColumns = `id, user_id, start_date, end_date, timezone, daily_points,
        week_avg_completion_rate, streak_days, trend, computed_at`

func (r *summaryRepo) GetWeekly(ctx context.Context, userID uuid.UUID, startDate time.Time) (*domain.WeeklySummary, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+weeklySummaryColumns+` FROM weekly_summaries
        WHERE user_id=$1 AND start_date=$2`, userID, startDate)

	var (
		s      domain.WeeklySummary
		points []byte
	)
	err := row.Scan(&s.ID, &s.UserID, &s.StartDate, &s.EndDate, &s.Timezone, &points,
		&s.WeekAvgCompletionRate, &s.StreakDays, &s.Trend, &s.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(points) > 0 {
		if err := json.Unmarshal(points, &s.DailyPoints); err != nil {
			return nil, fmt.Errorf("decode weekly points: %w", err)
		}
	}
	s.StartDate = domain.CivilDate(s.StartDate)
	s.EndDate = domain.CivilDate(s.EndDate)
	return &s, nil
}

func (r *summaryRepo) UpsertWeekly(ctx context.Context, s *domain.WeeklySummary) error {
	points, err := json.Marshal(s.DailyPoints)
	if err != nil {
		return fmt.Errorf("encode weekly points: %w", err)
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO weekly_summaries
        (id, user_id, start_date, end_date, timezone, daily_points,
         week_avg_completion_rate, streak_days, trend, computed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (user_id, start_date) DO UPDATE SET
            end_date=EXCLUDED.end_date,
            timezone=EXCLUDED.timezone,
            daily_points=EXCLUDED.daily_points,
            week_avg_completion_rate=EXCLUDED.week_avg_completion_rate,
            streak_days=EXCLUDED.streak_days,
            trend=EXCLUDED.trend,
            computed_at=EXCLUDED.computed_at`,
		s.ID, s.UserID, s.StartDate, s.EndDate, s.Timezone, points,
		s.WeekAvgCompletionRate, s.StreakDays, s.Trend, s.ComputedAt)
	return err
}

// AggregateExerciseSets counts the target and DONE sets across every session
// of the user's plans for the given target date, regardless of plan status.
func (r *summaryRepo) AggregateExerciseSets(ctx context.Context, userID uuid.UUID, date time.Time) (int, int, error) {
	row := r.tx.QueryRow(ctx, `SELECT
            COUNT(st.id),
            COUNT(st.id) FILTER (WHERE st.status='DONE')
        FROM exercise_set_states st
        JOIN exercise_sessions se ON se.id = st.session_id
        JOIN exercise_plans p ON p.id = se.plan_id
        WHERE p.user_id=$1 AND p.target_date=$2`, userID, date)

	var total, done int
	if err := row.Scan(&total, &done); err != nil {
		return 0, 0, err
	}
	return total, done, nil
}

func (r *summaryRepo) HasReadingCompletion(ctx context.Context, userID uuid.UUID, fromUTC, toUTC time.Time) (bool, error) {
	row := r.tx.QueryRow(ctx, `SELECT EXISTS (
            SELECT 1 FROM reading_logs
            WHERE user_id=$1 AND status='DONE' AND created_at >= $2 AND created_at <= $3
        )`, userID, fromUTC, toUTC)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
