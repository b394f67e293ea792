package tickets

import (
	"time"

	"roadassist-platform/internal/callsession"
)

// Ticket is the unit of customer support work. At most one call session is
// attached via CallID; a ticket created after a failed call initiation has no
// call and stays on the manual path.

type Status string

const (
	StatusAISupport     Status = "AI Agent Support"
	StatusRequiresHuman Status = "Requires Human"
	StatusInProgress    Status = "In Progress"
	StatusResolved      Status = "Resolved"
)

type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
	SenderAI       Sender = "ai"
	SenderSystem   Sender = "system"
)

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type Ticket struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Vehicle      string `json:"vehicle"`
	Location     string `json:"location"`
	Issue        string `json:"issue"`
	Category     string `json:"category"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`

	// CallID links the ticket to its call session; empty on the call-less
	// fallback path.
	CallID string                   `json:"call_id,omitempty"`
	Call   *callsession.CallSession `json:"call,omitempty"`
}

func (t *Ticket) clone() Ticket {
	out := *t
	if len(t.Messages) > 0 {
		out.Messages = make([]Message, len(t.Messages))
		copy(out.Messages, t.Messages)
	}
	out.Call = t.Call.Clone()
	return out
}
