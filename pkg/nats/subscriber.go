package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"rag-chat-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber consumes the EVENTS stream through durable consumers.
type Subscriber struct {
	js       jetstream.JetStream
	contexts []jetstream.ConsumeContext
}

func NewSubscriber(nc *nats.Conn) (*Subscriber, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Subscriber{js: js}, nil
}

// Subscribe registers a durable consumer so no event is lost across restarts.
func (s *Subscriber) Subscribe(ctx context.Context, subject string, durableName string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, eventsStream, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var env events.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			log.Printf("Error unmarshalling event data: %v", err)
			// Redelivery cannot fix a broken payload.
			_ = msg.Term()
			return
		}
		if env.Type == "" {
			env.Type = msg.Subject()
		}

		event := events.BaseEvent{
			Type:       env.Type,
			Data:       env.Data,
			OccurredAt: env.OccurredAt,
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.contexts = append(s.contexts, cc)
	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return nil
}

func (s *Subscriber) Stop() {
	for _, cc := range s.contexts {
		cc.Stop()
	}
}
