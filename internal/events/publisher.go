package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docfinder/appointments-api/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, eventType, body string) error
}

// Publisher wraps domain events in envelopes and hands them to a queue.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("events: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// PublishAppointmentCreated emits appointment.created.v1 for the appointment aggregate.
func (p *Publisher) PublishAppointmentCreated(ctx context.Context, evt AppointmentCreatedV1) error {
	return p.publish(ctx, "appointment:"+evt.AppointmentID, evt)
}

func (p *Publisher) publish(ctx context.Context, aggregate string, evt CanonicalEvent) error {
	env, err := newEnvelope(aggregate, evt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := p.queue.Send(ctx, env.EventType, string(body)); err != nil {
		return fmt.Errorf("events: publish %s: %w", env.EventType, err)
	}
	p.logger.Debug("event published", "event_id", env.EventID, "event_type", env.EventType, "aggregate", env.Aggregate)
	return nil
}
