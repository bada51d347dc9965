package events

import "time"

const TypeTurnRecorded = "TURN_RECORDED"

// TurnRecorded is emitted after a chat turn has been persisted.
type TurnRecorded struct {
	UserID       string
	SessionID    string
	MessageID    string
	ResponseTime float64 // seconds
	NewSession   bool
	OccurredAt   time.Time
}

func (e TurnRecorded) EventType() string {
	return TypeTurnRecorded
}

func (e TurnRecorded) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"session_id":    e.SessionID,
		"message_id":    e.MessageID,
		"response_time": e.ResponseTime,
		"new_session":   e.NewSession,
	}
}

func (e TurnRecorded) Timestamp() time.Time {
	return e.OccurredAt
}

// TurnRecordedFrom rebuilds the typed event from a decoded payload.
func TurnRecordedFrom(e Event) TurnRecorded {
	p := e.Payload()
	str := func(k string) string {
		s, _ := p[k].(string)
		return s
	}
	rt, _ := p["response_time"].(float64)
	ns, _ := p["new_session"].(bool)
	return TurnRecorded{
		UserID:       str("user_id"),
		SessionID:    str("session_id"),
		MessageID:    str("message_id"),
		ResponseTime: rt,
		NewSession:   ns,
		OccurredAt:   e.Timestamp(),
	}
}
