package nats

import (
	"context"
	"fmt"

	"ai-notetaking-pipeline/pkg/events"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber tails the EVENTS stream with an ephemeral consumer.
type Subscriber struct {
	js jetstream.JetStream
}

func NewSubscriber(js jetstream.JetStream) *Subscriber {
	return &Subscriber{js: js}
}

// Watch delivers events matching subject until ctx is done. With replay the
// retained history is delivered first.
func (s *Subscriber) Watch(ctx context.Context, subject string, replay bool, handler EventHandler) error {
	policy := jetstream.DeliverNewPolicy
	if replay {
		policy = jetstream.DeliverAllPolicy
	}
	consumer, err := s.js.OrderedConsumer(ctx, EventsStream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  policy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	errCh := make(chan error, 1)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var env eventEnvelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			return
		}
		event := events.BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}
		if err := handler(ctx, event); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cc.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
