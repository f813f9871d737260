package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/godlife/internal/domain"
)

type notificationRepo struct {
	tx pgx.Tx
}

const notificationColumns = `id, user_id, kind, related_id, status, schedule_at, sent_at,
        retry_count, idempotency_key, payload, reason_code, failure_reason, last_error_at,
        created_at, updated_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n   domain.Notification
		raw []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.RelatedID, &n.Status, &n.ScheduleAt, &n.SentAt,
		&n.RetryCount, &n.IdempotencyKey, &raw, &n.ReasonCode, &n.FailureReason, &n.LastErrorAt,
		&n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &n.Payload); err != nil {
			return nil, fmt.Errorf("decode notification payload: %w", err)
		}
	}
	return &n, nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	return scanNotification(row)
}

func (r *notificationRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE idempotency_key=$1`, key)
	return scanNotification(row)
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.NotificationStatus, limit int) ([]domain.Notification, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
        WHERE user_id=$1 AND ($2::text IS NULL OR status=$2)
        ORDER BY schedule_at DESC LIMIT $3`, userID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO notifications
        (id, user_id, kind, related_id, status, schedule_at, sent_at, retry_count,
         idempotency_key, payload, reason_code, failure_reason, last_error_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		n.ID, n.UserID, n.Kind, n.RelatedID, n.Status, n.ScheduleAt, n.SentAt, n.RetryCount,
		n.IdempotencyKey, payload, n.ReasonCode, n.FailureReason, n.LastErrorAt, n.CreatedAt, n.UpdatedAt)
	return translateUnique(err)
}

func (r *notificationRepo) Update(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}
	_, err = r.tx.Exec(ctx, `UPDATE notifications SET
        status=$2, schedule_at=$3, sent_at=$4, retry_count=$5, payload=$6,
        reason_code=$7, failure_reason=$8, last_error_at=$9, updated_at=$10
        WHERE id=$1`,
		n.ID, n.Status, n.ScheduleAt, n.SentAt, n.RetryCount, payload,
		n.ReasonCode, n.FailureReason, n.LastErrorAt, n.UpdatedAt)
	return err
}
