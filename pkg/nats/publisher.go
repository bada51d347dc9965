package nats

import (
	"context"
	"fmt"
	"log"
	"time"

	"rag-chat-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	eventsStream  = "EVENTS"
	eventsSubject = "events.>"
)

// Publisher sends domain events to the durable EVENTS stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(nc *nats.Conn) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      eventsStream,
		Subjects:  []string{eventsSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		// The stream may already exist under another config, or NATS may not be ready yet.
		log.Printf("Warn: Failed to ensure stream '%s': %v", eventsStream, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

func Subject(eventType string) string {
	return fmt.Sprintf("events.%s", eventType)
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := events.Marshal(event)
	if err != nil {
		return err
	}

	subject := Subject(event.EventType())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}
