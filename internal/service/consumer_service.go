package service

import (
	"context"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventRelay forwards a decoded event to the durable bus.
type EventRelay interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	relay      EventRelay
	logger     logger.ILogger
}

func NewConsumerService(subscriber message.Subscriber, topicName string, relay EventRelay, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		relay:      relay,
		logger:     log,
	}
}

// Consume starts relaying in the background and returns once subscribed.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		cs.logger.Error("ConsumerService", "Dropping malformed event", map[string]interface{}{
			"message_uuid": msg.UUID,
			"error":        err,
		})
		// Redelivery cannot fix a broken payload.
		msg.Ack()
		return
	}

	if cs.relay == nil {
		msg.Ack()
		return
	}

	if err := cs.relay.Publish(ctx, event); err != nil {
		cs.logger.Warn("ConsumerService", "Relay failed, will retry", map[string]interface{}{
			"message_uuid": msg.UUID,
			"type":         event.EventType(),
			"error":        err,
		})
		msg.Nack()
		return
	}

	cs.logger.Debug("ConsumerService", "Event relayed", map[string]interface{}{
		"message_uuid": msg.UUID,
		"type":         event.EventType(),
	})
	msg.Ack()
}
