package tickets

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadassist-platform/internal/callsession"
)

// Store is the single in-memory owner of all tickets and their call sessions.
//
// ApplyEvent is the one mutation path for call-driven transitions; both the
// websocket fast path and the reconciliation poller go through it, so
// double delivery across push+poll is inherently safe.

var ErrUnknownCall = errors.New("tickets: no ticket for call_id")

type Store struct {
	mu     sync.Mutex
	byID   map[string]*Ticket
	byCall map[string]*Ticket
	clock  func() time.Time
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*Ticket),
		byCall: make(map[string]*Ticket),
		clock:  time.Now,
	}
}

// Create registers a ticket, assigning ID and CreatedAt. A non-empty CallID
// also creates the call session in phase initiated.
func (s *Store) Create(t Ticket) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.Status == "" {
		t.Status = StatusAISupport
	}
	if t.CallID != "" && t.Call == nil {
		t.Call = callsession.New(t.CallID)
	}

	stored := t.clone()
	s.byID[stored.ID] = &stored
	if stored.CallID != "" {
		s.byCall[stored.CallID] = &stored
	}
	return stored.clone()
}

// ApplyEvent merges one verified provider event into the owning ticket.
// Idempotent: replays are absorbed by the session's monotonic phase and
// segment dedup. Events for unknown call ids are rejected with
// ErrUnknownCall; they cannot be retroactively attached.
func (s *Store) ApplyEvent(ev callsession.CallEvent, receivedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byCall[ev.CallID]
	if !ok {
		return ErrUnknownCall
	}

	ch := t.Call.Apply(ev, receivedAt)

	if ch.PhaseAdvanced {
		switch ch.To {
		case callsession.PhaseInProgress:
			t.Status = StatusInProgress
			s.appendSystemMessage(t, "AI agent is currently on a call with the customer...")
		case callsession.PhaseCompleted:
			t.Status = StatusResolved
			if t.Call.FinalTranscript != "" {
				s.appendSystemMessage(t, "Call completed. Transcript: "+t.Call.FinalTranscript)
			} else {
				s.appendSystemMessage(t, "Call completed.")
			}
		}
	}
	return nil
}

// FailCall records a call-setup failure. Ticket status is left unchanged: the
// ticket survives on the manual path.
func (s *Store) FailCall(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byCall[callID]
	if !ok {
		return ErrUnknownCall
	}
	t.Call.Fail()
	return nil
}

// AddMessage appends a conversation message to a ticket.
func (s *Store) AddMessage(ticketID string, sender Sender, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[ticketID]
	if !ok {
		return Message{}, errors.New("tickets: not found")
	}
	m := Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: s.clock().UTC(),
	}
	t.Messages = append(t.Messages, m)
	return m, nil
}

func (s *Store) Get(id string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return Ticket{}, false
	}
	return t.clone(), true
}

func (s *Store) GetByCall(callID string) (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byCall[callID]
	if !ok {
		return Ticket{}, false
	}
	return t.clone(), true
}

// List returns all tickets, newest first.
func (s *Store) List() []Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Ticket, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) appendSystemMessage(t *Ticket, content string) {
	t.Messages = append(t.Messages, Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    SenderSystem,
		Timestamp: s.clock().UTC(),
	})
}
