// Package webhook deduplicates inbound provider events and dispatches
// embedded set results inside the same transaction as the event insert.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/observability"
	"example.com/godlife/internal/plan"
)

// Ingest results.
const (
	ResultAccepted  = "accepted"
	ResultDuplicate = "duplicate"
)

// SetResultContext carries the optional set-result fields of a webhook body.
type SetResultContext struct {
	PlanID            uuid.UUID
	SessionID         uuid.UUID
	SetNo             int
	Result            string
	PerformedReps     *int
	PerformedWeightKg *float64
	ActualRestSec     *int
}

// IngestInput captures one inbound provider event.
type IngestInput struct {
	Provider       string
	EventType      string
	UserID         *uuid.UUID
	EventID        *string
	IdempotencyKey string
	RawPayload     []byte
	SetResult      *SetResultContext
}

// IngestOutcome reports dedup status and the persisted event.
type IngestOutcome struct {
	Result string
	Event  *domain.WebhookEvent
}

// Service handles webhook ingress behind the unit of work.
type Service struct {
	store domain.Store
	plans *plan.Service
}

// NewService constructs a Service. The plan service executes embedded set
// results within the ingress transaction.
func NewService(store domain.Store, plans *plan.Service) *Service {
	return &Service{store: store, plans: plans}
}

// Ingest records the event on first observation and appends a WebhookReceived
// outbox event in the same commit. A duplicate by (provider, idempotency key)
// or (provider, event id) returns the stored row without side effects — the
// set-result dispatch runs only on first observation, so either the event
// insert and the set mutation both commit or both roll back.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (*IngestOutcome, error) {
	if in.Provider == "" {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrValidation)
	}

	var outcome *IngestOutcome
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		event, created, err := handleEventTx(ctx, r, in)
		if err != nil {
			return err
		}
		if !created {
			outcome = &IngestOutcome{Result: ResultDuplicate, Event: event}
			return nil
		}

		if in.SetResult != nil {
			sr := in.SetResult
			if _, err := s.plans.SubmitSetResultTx(ctx, r, plan.SetResultInput{
				PlanID:            sr.PlanID,
				SessionID:         sr.SessionID,
				SetNo:             sr.SetNo,
				Result:            sr.Result,
				PerformedReps:     sr.PerformedReps,
				PerformedWeightKg: sr.PerformedWeightKg,
				ActualRestSec:     sr.ActualRestSec,
			}); err != nil {
				return err
			}
		}

		outcome = &IngestOutcome{Result: ResultAccepted, Event: event}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordWebhookEvent(outcome.Result)
	return outcome, nil
}

// handleEventTx performs the dedup lookup and, on first observation, the
// insert plus outbox append. The bool reports whether a new row was created.
func handleEventTx(ctx context.Context, r domain.Repositories, in IngestInput) (*domain.WebhookEvent, bool, error) {
	key := in.IdempotencyKey
	if key == "" {
		key = deriveKey(in)
	}

	existing, err := r.Webhooks.GetByProviderAndKey(ctx, in.Provider, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if in.EventID != nil {
		existing, err = r.Webhooks.GetByProviderAndEventID(ctx, in.Provider, *in.EventID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	raw := in.RawPayload
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		Provider:       in.Provider,
		EventType:      in.EventType,
		UserID:         in.UserID,
		IdempotencyKey: key,
		EventID:        in.EventID,
		SchemaVersion:  "v1",
		RawPayload:     raw,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.Webhooks.Create(ctx, event); err != nil {
		return nil, false, err
	}

	outboxEvent, err := domain.NewOutboxEvent(
		domain.AggregateWebhook,
		event.ID,
		domain.EventWebhookReceived,
		domain.WebhookReceived{
			Provider:  event.Provider,
			EventType: event.EventType,
			EventID:   event.EventID,
		},
	)
	if err != nil {
		return nil, false, err
	}
	if err := r.Outbox.Append(ctx, outboxEvent); err != nil {
		return nil, false, err
	}
	return event, true, nil
}

func deriveKey(in IngestInput) string {
	if in.EventID != nil {
		return fmt.Sprintf("%s:%s:%s", in.Provider, in.EventType, *in.EventID)
	}
	return fmt.Sprintf("%s:%s", in.Provider, in.EventType)
}
