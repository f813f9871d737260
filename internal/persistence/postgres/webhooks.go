package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"example.com/godlife/internal/domain"
)

type webhookRepo struct {
	tx pgx.Tx
}

const webhookColumns = `id, provider, event_type, user_id, idempotency_key, event_id,
        schema_version, raw_payload, processed, reason_code, retry_count, created_at`

func scanWebhookEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	err := row.Scan(&e.ID, &e.Provider, &e.EventType, &e.UserID, &e.IdempotencyKey, &e.EventID,
		&e.SchemaVersion, &e.RawPayload, &e.Processed, &e.ReasonCode, &e.RetryCount, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *webhookRepo) GetByProviderAndKey(ctx context.Context, provider, idempotencyKey string) (*domain.WebhookEvent, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhook_events
        WHERE provider=$1 AND idempotency_key=$2`, provider, idempotencyKey)
	return scanWebhookEvent(row)
}

func (r *webhookRepo) GetByProviderAndEventID(ctx context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhook_events
        WHERE provider=$1 AND event_id=$2`, provider, eventID)
	return scanWebhookEvent(row)
}

func (r *webhookRepo) Create(ctx context.Context, event *domain.WebhookEvent) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO webhook_events
        (id, provider, event_type, user_id, idempotency_key, event_id, schema_version,
         raw_payload, processed, reason_code, retry_count, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		event.ID, event.Provider, event.EventType, event.UserID, event.IdempotencyKey,
		event.EventID, event.SchemaVersion, event.RawPayload, event.Processed,
		event.ReasonCode, event.RetryCount, event.CreatedAt)
	return translateUnique(err)
}
