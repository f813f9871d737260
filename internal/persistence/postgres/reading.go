package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"example.com/godlife/internal/domain"
)

type readingPlanRepo struct {
	tx pgx.Tx
}

const readingPlanColumns = `id, user_id, remind_time, goal_minutes, enabled, created_at, updated_at`

func scanReadingPlan(row pgx.Row) (*domain.ReadingPlan, error) {
	var (
		p      domain.ReadingPlan
		remind pgtype.Time
	)
	err := row.Scan(&p.ID, &p.UserID, &remind, &p.GoalMinutes, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.RemindTime = time.Duration(remind.Microseconds) * time.Microsecond
	return &p, nil
}

func (r *readingPlanRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.ReadingPlan, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+readingPlanColumns+` FROM reading_plans
        WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1`, userID)
	return scanReadingPlan(row)
}

func (r *readingPlanRepo) Save(ctx context.Context, plan *domain.ReadingPlan) error {
	remind := pgtype.Time{Microseconds: plan.RemindTime.Microseconds(), Valid: true}
	_, err := r.tx.Exec(ctx, `INSERT INTO reading_plans (id, user_id, remind_time, goal_minutes, enabled, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
            remind_time=EXCLUDED.remind_time,
            goal_minutes=EXCLUDED.goal_minutes,
            enabled=EXCLUDED.enabled,
            updated_at=EXCLUDED.updated_at`,
		plan.ID, plan.UserID, remind, plan.GoalMinutes, plan.Enabled, plan.CreatedAt, plan.UpdatedAt)
	return err
}

type readingLogRepo struct {
	tx pgx.Tx
}

const readingLogColumns = `id, user_id, reading_plan_id, book_title, start_at, end_at, pages_read, status, created_at, updated_at`

func scanReadingLog(row pgx.Row) (*domain.ReadingLog, error) {
	var l domain.ReadingLog
	err := row.Scan(&l.ID, &l.UserID, &l.ReadingPlanID, &l.BookTitle, &l.StartAt, &l.EndAt,
		&l.PagesRead, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *readingLogRepo) List(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.ReadingLog, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+readingLogColumns+` FROM reading_logs
        WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReadingLog
	for rows.Next() {
		log, err := scanReadingLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *log)
	}
	return out, rows.Err()
}

func (r *readingLogRepo) Create(ctx context.Context, log *domain.ReadingLog) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO reading_logs
        (id, user_id, reading_plan_id, book_title, start_at, end_at, pages_read, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		log.ID, log.UserID, log.ReadingPlanID, log.BookTitle, log.StartAt, log.EndAt,
		log.PagesRead, log.Status, log.CreatedAt, log.UpdatedAt)
	return err
}
