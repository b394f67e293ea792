package callsession

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType is the provider's open event tag. Recognized values drive phase
// transitions; anything else is carried through as-is and ignored by the
// state machine (forward-compatible with provider additions).
type EventType string

const (
	EventCallStarted       EventType = "call.started"
	EventTranscriptPartial EventType = "transcript.partial"
	EventCallInProgress    EventType = "call.in_progress"
	EventCallCompleted     EventType = "call.completed"
)

func (t EventType) Recognized() bool {
	switch t {
	case EventCallStarted, EventTranscriptPartial, EventCallInProgress, EventCallCompleted:
		return true
	default:
		return false
	}
}

var (
	ErrMalformedEvent = errors.New("callsession: malformed event payload")
	ErrMissingCallID  = errors.New("callsession: event missing call_id")
)

// CallEvent is the normalized form of one provider webhook delivery.
// Segment is set for transcript.partial; Transcript for call.completed.
type CallEvent struct {
	CallID     string             `json:"call_id"`
	Type       EventType          `json:"event"`
	Segment    *TranscriptSegment `json:"transcript_segment,omitempty"`
	Transcript string             `json:"transcript,omitempty"`
}

// wireEvent mirrors the provider payload. Segment timestamps arrive as
// RFC 3339 strings when present; unparseable ones are dropped so the
// server-assigned receipt time takes over.
type wireEvent struct {
	CallID  string `json:"call_id"`
	Event   string `json:"event"`
	Segment *struct {
		Speaker   string `json:"speaker"`
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
	} `json:"transcript_segment"`
	Transcript string `json:"transcript"`
}

// ParseEvent decodes a raw provider payload into a CallEvent. The payload
// must be well-formed JSON and carry a call_id; everything else is optional.
func ParseEvent(raw []byte) (CallEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return CallEvent{}, ErrMalformedEvent
	}
	if w.CallID == "" {
		return CallEvent{}, ErrMissingCallID
	}

	ev := CallEvent{
		CallID:     w.CallID,
		Type:       EventType(w.Event),
		Transcript: w.Transcript,
	}
	if w.Segment != nil {
		seg := TranscriptSegment{
			Speaker: Speaker(w.Segment.Speaker),
			Text:    w.Segment.Text,
		}
		if ts, err := time.Parse(time.RFC3339, w.Segment.Timestamp); err == nil {
			seg.Timestamp = ts
		}
		ev.Segment = &seg
	}
	return ev, nil
}
