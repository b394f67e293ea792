package eventlog

import (
	"encoding/json"
	"time"
)

// Record is one received webhook delivery, stored verbatim.
//
// The log is append-only: records are never updated or deleted, and they are
// stored in receipt order. ReceivedAt is assigned by this server, never
// trusted from the provider, and is the basis for since-filtering. Receipt
// order is not causal order; consumers must not assume ReceivedAt order
// matches provider-side chronology.

type Record struct {
	ID        string          `json:"id"`
	CallID    string          `json:"call_id"`
	EventType string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}
