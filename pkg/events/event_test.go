package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	evt := NewTurnCommitted("s1", "t1", 4, 3, false, at)

	raw, err := json.Marshal(ToEnvelope(evt))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))

	back := env.Event()
	assert.Equal(t, TypeTurnCommitted, back.EventType())
	assert.True(t, at.Equal(back.Timestamp()))
	assert.Equal(t, "t1", back.Payload()["turn_id"])

	id, ok := SessionID(back)
	assert.True(t, ok)
	assert.Equal(t, "s1", id)
}

func TestSessionID_Missing(t *testing.T) {
	_, ok := SessionID(BaseEvent{Type: "x", Data: map[string]interface{}{}})
	assert.False(t, ok)
}
