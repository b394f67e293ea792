package callsession

import "time"

// CallSession tracks one outbound assistance call from initiation to a
// terminal state. It is created the moment the voice provider acknowledges a
// call request and is mutated only through Apply with verified webhook events.
//
// Phase ordering invariant: the phase advances monotonically through
// initiated -> started -> in_progress -> completed. Events arriving out of
// order never move the phase backwards. failed is reachable from initiated
// only (call setup failure) and, like completed, is terminal.

type Phase string

const (
	PhaseInitiated  Phase = "initiated"
	PhaseStarted    Phase = "started"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// rank orders the forward phases. Terminal phases sort highest so that no
// lifecycle event can move a session out of them.
func (p Phase) rank() int {
	switch p {
	case PhaseInitiated:
		return 0
	case PhaseStarted:
		return 1
	case PhaseInProgress:
		return 2
	case PhaseCompleted, PhaseFailed:
		return 3
	default:
		return -1
	}
}

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// TranscriptSegment is immutable once appended. Segments are kept in receipt
// order, which is not guaranteed to match conversation order.
type TranscriptSegment struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (s TranscriptSegment) dedupKey() string {
	return string(s.Speaker) + "\x00" + s.Text + "\x00" + s.Timestamp.UTC().Format(time.RFC3339Nano)
}

type CallSession struct {
	CallID     string              `json:"call_id"`
	Phase      Phase               `json:"phase"`
	Transcript []TranscriptSegment `json:"transcript"`

	// FinalTranscript is the provider's full-call transcript delivered with
	// the completion event, kept separate from the partial segments.
	FinalTranscript string `json:"final_transcript,omitempty"`

	seen map[string]struct{}
}

func New(callID string) *CallSession {
	return &CallSession{CallID: callID, Phase: PhaseInitiated}
}

// Change reports what Apply did, so the ticket projection can react without
// re-deriving state machine logic.
type Change struct {
	PhaseAdvanced   bool
	From, To        Phase
	SegmentAppended bool
	Completed       bool
}

// Apply merges one verified provider event into the session. It is the single
// mutation point shared by the push and poll delivery paths and is idempotent:
// applying the same event twice yields the same session state as once.
//
// receivedAt is the server-assigned receipt time, used as a segment timestamp
// fallback when the provider omits one.
func (s *CallSession) Apply(ev CallEvent, receivedAt time.Time) Change {
	var ch Change
	ch.From, ch.To = s.Phase, s.Phase

	if ev.Type == EventTranscriptPartial {
		if s.Phase.Terminal() || ev.Segment == nil {
			return ch
		}
		seg := *ev.Segment
		if seg.Timestamp.IsZero() {
			seg.Timestamp = receivedAt
		}
		if s.seen == nil {
			s.seen = make(map[string]struct{})
		}
		key := seg.dedupKey()
		if _, dup := s.seen[key]; dup {
			return ch
		}
		s.seen[key] = struct{}{}
		s.Transcript = append(s.Transcript, seg)
		ch.SegmentAppended = true
		return ch
	}

	next, ok := nextPhase(s.Phase, ev.Type)
	if !ok || next.rank() <= s.Phase.rank() {
		return ch
	}
	s.Phase = next
	ch.PhaseAdvanced = true
	ch.To = next
	if next == PhaseCompleted {
		ch.Completed = true
		if ev.Transcript != "" {
			s.FinalTranscript = ev.Transcript
		}
	}
	return ch
}

// Fail marks a call-setup failure. Only a session that never progressed past
// initiated can fail; anything later is a live or finished call.
func (s *CallSession) Fail() bool {
	if s.Phase != PhaseInitiated {
		return false
	}
	s.Phase = PhaseFailed
	return true
}

func nextPhase(cur Phase, t EventType) (Phase, bool) {
	if cur.Terminal() {
		return cur, false
	}
	switch t {
	case EventCallStarted:
		return PhaseStarted, true
	case EventCallInProgress:
		return PhaseInProgress, true
	case EventCallCompleted:
		return PhaseCompleted, true
	default:
		return cur, false
	}
}

// Clone returns a deep copy safe to hand out across goroutines.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	out := &CallSession{
		CallID:          s.CallID,
		Phase:           s.Phase,
		FinalTranscript: s.FinalTranscript,
	}
	if len(s.Transcript) > 0 {
		out.Transcript = make([]TranscriptSegment, len(s.Transcript))
		copy(out.Transcript, s.Transcript)
	}
	if len(s.seen) > 0 {
		out.seen = make(map[string]struct{}, len(s.seen))
		for k := range s.seen {
			out.seen[k] = struct{}{}
		}
	}
	return out
}
