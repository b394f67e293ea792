package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"roadassist-platform/internal/callsession"
)

// Event is the normalized push payload broadcast to UI sessions.
type Event struct {
	CallID     string                         `json:"call_id"`
	Type       callsession.EventType          `json:"event"`
	Segment    *callsession.TranscriptSegment `json:"transcript_segment,omitempty"`
	Transcript string                         `json:"transcript,omitempty"`
	ReceivedAt time.Time                      `json:"received_at"`
}

// Hub broadcasts verified events to every currently connected subscriber.
//
// Delivery is best-effort and at-most-once per connected subscriber: there is
// no queueing or replay for sessions that connect after publication, and a
// subscriber that cannot keep up is dropped rather than allowed to block the
// ingress. The reconciliation poller covers the gaps.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription buffers outbound frames for one connected session.
type Subscription struct {
	C chan []byte
}

const subscriberBuffer = 32

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{C: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.C)
	}
	h.mu.Unlock()
}

// Publish sends ev to all current subscribers in arrival order.
// Fire-and-forget: no acknowledgment is expected, and a full subscriber
// buffer means the frame is dropped for that subscriber only.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		slog.Error("fanout marshal failed", "call_id", ev.CallID, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.C <- msg:
		default:
			slog.Warn("fanout subscriber lagging, frame dropped", "call_id", ev.CallID)
		}
	}
}

// SubscriberCount reports currently connected sessions (health/diagnostics).
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
