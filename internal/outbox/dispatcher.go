// Package outbox drains persisted domain events and delivers them to Kafka.
package outbox

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/godlife/internal/domain"
)

// Topics for the two event streams, keyed by aggregate type.
const (
	TopicNotificationEvents = "godlife.notification.events"
	TopicWebhookEvents      = "godlife.webhook.events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// leaser is the slice of the outbox repository the dispatcher needs.
type leaser interface {
	LeasePending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkComplete(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Dispatcher polls the outbox table, leases PENDING events, and publishes
// them to the topic matching their aggregate type. Failed deliveries are
// marked FAILED with the reason merged into the event payload; a later
// drain or operator can requeue them.
type Dispatcher struct {
	repo             leaser
	producer         messageWriter
	pollInterval     time.Duration
	batchSize        int
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(repo leaser, producer messageWriter, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		repo:             repo,
		producer:         producer,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the dispatcher has stopped.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	events, err := d.repo.LeasePending(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			log.Printf("outbox: delivery failure for %s: %v", event.ID, err)
			failedCounter.Inc()
			if markErr := d.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		deliveredCounter.Inc()
		if err := d.repo.MarkComplete(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.OutboxEvent) error {
	topic := topicFor(event.AggregateType)
	msg := kafka.Message{
		Key:   []byte(event.AggregateID.String()),
		Value: event.Payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return d.producer.WriteMessages(ctx, topic, msg)
}

func topicFor(aggregateType string) string {
	if aggregateType == domain.AggregateWebhook {
		return TopicWebhookEvents
	}
	return TopicNotificationEvents
}
