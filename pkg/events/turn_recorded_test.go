package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnRecordedFrom_SurvivesJSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := TurnRecorded{UserID: "u1", SessionID: "s1", MessageID: "m1", ResponseTime: 2.5, NewSession: true, OccurredAt: at}

	raw, err := json.Marshal(in.Payload())
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &data))

	out := TurnRecordedFrom(BaseEvent{Type: TypeTurnRecorded, Data: data, OccurredAt: at})
	assert.Equal(t, in, out)
}

func TestEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := TurnRecorded{UserID: "u1", SessionID: "s1", MessageID: "m1", ResponseTime: 1, OccurredAt: at}

	raw, err := Marshal(in)
	require.NoError(t, err)

	evt, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeTurnRecorded, evt.EventType())
	assert.Equal(t, in, TurnRecordedFrom(evt))

	_, err = Unmarshal([]byte(`{"data":{}}`))
	assert.Error(t, err)
}
