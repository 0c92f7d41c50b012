package events

import "time"

const (
	TypeTurnCommitted  = "turn.committed"
	TypeSessionCreated = "session.created"
)

func NewTurnCommitted(sessionID, turnID string, sequence int64, passageCount int, partial bool, at time.Time) Event {
	return BaseEvent{
		Type: TypeTurnCommitted,
		Data: map[string]interface{}{
			"session_id":    sessionID,
			"turn_id":       turnID,
			"sequence":      sequence,
			"passage_count": passageCount,
			"partial":       partial,
		},
		OccurredAt: at,
	}
}

func NewSessionCreated(sessionID, name string, at time.Time) Event {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"name":       name,
		},
		OccurredAt: at,
	}
}

// SessionID extracts the session an event belongs to, if any.
func SessionID(e Event) (string, bool) {
	id, ok := e.Payload()["session_id"].(string)
	return id, ok && id != ""
}
