package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Requester performs synchronous request/reply calls.
type Requester struct {
	nc *nats.Conn
}

func NewRequester(nc *nats.Conn) *Requester {
	return &Requester{nc: nc}
}

// Request blocks until a reply arrives or ctx expires. ctx must carry a deadline.
func (r *Requester) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := r.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return msg.Data, nil
}
