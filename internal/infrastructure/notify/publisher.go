// Package notify delivers change notifications to external sinks.
//
// Postgres deployments queue changes in the transactional outbox and the
// worker relays them through a Publisher. The in-memory backend publishes
// directly once its transaction commits.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/change"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// Sink names accepted by NOTIFY_SINK.
const (
	SinkLog   = "log"
	SinkKafka = "kafka"
	SinkRedis = "redis"
	SinkNone  = "none"
)

// Event is the wire form of a change.
type Event struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entityId"`
	At        time.Time `json:"at"`
}

// NewEvent wraps a change. eventID identifies the delivery (the outbox row id
// when relayed) so consumers can deduplicate.
func NewEvent(eventID id.ID, c change.Change) Event {
	return Event{
		ID:        eventID.String(),
		EventType: c.EventType(),
		Kind:      string(c.Kind),
		EntityID:  c.ID.String(),
		At:        c.At,
	}
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends events to a sink.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// LogPublisher writes events to the structured log.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		logger.Info(ctx, "change published",
			"event_id", e.ID,
			"event_type", e.EventType,
			"entity_id", e.EntityID)
	}
	return nil
}

// Close implements Publisher.
func (LogPublisher) Close() error { return nil }

// NopPublisher drops events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, ...Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// RelayHandler adapts a Publisher to the outbox relay.
func RelayHandler(p Publisher) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		c, err := msg.Change()
		if err != nil {
			return err
		}
		if err := p.Publish(ctx, NewEvent(msg.ID, c)); err != nil {
			return fmt.Errorf("publish %s: %w", msg.EventType, err)
		}
		return nil
	})
}

// Forwarder returns a delivery callback for memory.NewNotifier that publishes
// committed changes. Failures are logged; the mutation has already committed.
func Forwarder(p Publisher) func(ctx context.Context, changes []change.Change) {
	return func(ctx context.Context, changes []change.Change) {
		events := make([]Event, len(changes))
		for i, c := range changes {
			events[i] = NewEvent(id.New(), c)
		}
		if err := p.Publish(ctx, events...); err != nil {
			logger.Warn(ctx, "failed to publish changes", "count", len(events), "error", err)
		}
	}
}
