package nats

import (
	"context"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// RequestHandler turns one request payload into its reply payload.
type RequestHandler func(ctx context.Context, data []byte) []byte

// Responder serves request/reply subjects through a queue group so replicas share the load.
type Responder struct {
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewResponder(nc *nats.Conn) *Responder {
	return &Responder{nc: nc}
}

func (r *Responder) Serve(subject, queue string, handler RequestHandler) error {
	sub, err := r.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		reply := handler(context.Background(), msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			log.Printf("Failed to respond on %s: %v", subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	r.subs = append(r.subs, sub)
	log.Printf("Serving requests on %s (queue %s)", subject, queue)
	return nil
}

// Drain stops accepting requests after in-flight ones are answered.
func (r *Responder) Drain() {
	for _, s := range r.subs {
		_ = s.Drain()
	}
}
