package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
// Sequence carries the cart version counter so consumers can order events.
type PayloadEnvelope struct {
	Sequence   int             `json:"sequence"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Owner      string          `json:"owner,omitempty"`
	Data       json.RawMessage `json:"data"`
}
