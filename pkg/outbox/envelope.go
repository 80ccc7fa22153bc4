package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies the shopper or operator that produced the event.
type ActorRef struct {
	SessionID string  `json:"sessionId,omitempty"`
	UserID    *string `json:"userId,omitempty"`
	Role      string  `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
