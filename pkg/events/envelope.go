package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire shape shared by the in-process bus and JetStream.
type Envelope struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(Envelope{Type: e.EventType(), OccurredAt: e.Timestamp(), Data: e.Payload()})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}
	return data, nil
}

func Unmarshal(data []byte) (BaseEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return BaseEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if env.Type == "" {
		return BaseEvent{}, fmt.Errorf("unmarshal event: missing type")
	}
	return BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}, nil
}
