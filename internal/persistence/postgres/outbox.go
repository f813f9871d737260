package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/godlife/internal/domain"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, created_at, updated_at`

func scanOutboxEvent(row pgx.Row) (*domain.OutboxEvent, error) {
	var e domain.OutboxEvent
	err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
		&e.Status, &e.RetryCount, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// outboxRepo is the transaction-scoped half of the outbox: Append rides the
// ambient transaction so the event commits with the state change it records.
type outboxRepo struct {
	tx pgx.Tx
}

func (r *outboxRepo) Append(ctx context.Context, event domain.OutboxEvent) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO outbox_events
        (id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Payload,
		event.Status, event.RetryCount, event.CreatedAt, event.UpdatedAt)
	return err
}

func (r *outboxRepo) LeasePending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	return leasePending(ctx, r.tx, limit)
}

func (r *outboxRepo) MarkComplete(ctx context.Context, id uuid.UUID) error {
	return markComplete(ctx, r.tx, id)
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return markFailed(ctx, r.tx, id, reason)
}

// PoolOutboxRepo serves the dispatcher, which runs outside the per-request
// transactions. Each lease is its own short transaction so concurrent drainers
// skip each other's locked rows.
type PoolOutboxRepo struct {
	pool *pgxpool.Pool
}

func (r *PoolOutboxRepo) Append(ctx context.Context, event domain.OutboxEvent) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO outbox_events
        (id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Payload,
		event.Status, event.RetryCount, event.CreatedAt, event.UpdatedAt)
	return err
}

func (r *PoolOutboxRepo) LeasePending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	events, err := leasePending(ctx, tx, limit)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PoolOutboxRepo) MarkComplete(ctx context.Context, id uuid.UUID) error {
	return markComplete(ctx, r.pool, id)
}

func (r *PoolOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return markFailed(ctx, r.pool, id, reason)
}

func leasePending(ctx context.Context, tx pgx.Tx, limit int) ([]domain.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `UPDATE outbox_events SET status='IN_FLIGHT', updated_at=now()
        WHERE id IN (
            SELECT id FROM outbox_events
            WHERE status='PENDING'
            ORDER BY created_at
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+outboxColumns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutboxEvent
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *event)
	}
	return out, rows.Err()
}

// executor abstracts Exec over pgx.Tx and pgxpool.Pool so mark operations can
// run either inside a lease transaction or directly on the pool.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func markComplete(ctx context.Context, ex executor, id uuid.UUID) error {
	_, err := ex.Exec(ctx, `UPDATE outbox_events SET status='COMPLETED', updated_at=now() WHERE id=$1`, id)
	return err
}

func markFailed(ctx context.Context, ex executor, id uuid.UUID, reason string) error {
	_, err := ex.Exec(ctx, `UPDATE outbox_events SET
        status='FAILED',
        retry_count=retry_count+1,
        payload=payload || jsonb_build_object('failure_reason', $2::text),
        updated_at=now()
        WHERE id=$1`, id, reason)
	return err
}
