package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outbox event types emitted by the core services.
const (
	EventNotificationScheduled      = "NotificationScheduled"
	EventNotificationRetryScheduled = "NotificationRetryScheduled"
	EventWebhookReceived            = "WebhookReceived"
)

// Aggregate types referenced by outbox events.
const (
	AggregateNotification = "notification"
	AggregateWebhook      = "webhook"
)

// NotificationScheduled is emitted when a notification enters SCHEDULED.
type NotificationScheduled struct {
	NotificationID uuid.UUID `json:"notification_id"`
	Kind           string    `json:"kind"`
	ScheduleAt     time.Time `json:"schedule_at"`
}

// NotificationRetryScheduled is emitted when a notification is re-queued.
type NotificationRetryScheduled struct {
	NotificationID uuid.UUID `json:"notification_id"`
	RetryCount     int       `json:"retry_count"`
}

// WebhookReceived is emitted on the first observation of a provider event.
type WebhookReceived struct {
	Provider  string  `json:"provider"`
	EventType string  `json:"event_type"`
	EventID   *string `json:"event_id"`
}

// NewOutboxEvent builds a PENDING outbox event with a serialized payload.
func NewOutboxEvent(aggregateType string, aggregateID uuid.UUID, eventType string, payload any) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, err
	}
	now := time.Now().UTC()
	return OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Status:        OutboxStatusPending,
		RetryCount:    0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
