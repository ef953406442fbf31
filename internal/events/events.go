package events

import (
	"context"
	"encoding/json"

	"habitloop/pkg/outbox"

	"go.uber.org/zap"
)

// Sink is where services hand off domain events. The production sink is
// the transactional outbox; tests use an in-memory fake.
type Sink interface {
	Emit(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

// OutboxSink queues events in the outbox table for the worker's
// dispatcher to publish.
type OutboxSink struct {
	repo   *outbox.Repository
	logger *zap.Logger
}

func NewOutboxSink(repo *outbox.Repository, logger *zap.Logger) *OutboxSink {
	return &OutboxSink{repo: repo, logger: logger}
}

func (s *OutboxSink) Emit(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   &aggregateID,
		RoutingKey:    routingKey,
		Payload:       body,
	}
	if err := s.repo.Enqueue(ctx, event); err != nil {
		s.logger.Error("Failed to enqueue event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
		return err
	}

	s.logger.Debug("Event enqueued",
		zap.Int64("event_id", event.ID),
		zap.String("routing_key", routingKey),
	)
	return nil
}

// NopSink drops events; used when the outbox is not configured.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	return nil
}
