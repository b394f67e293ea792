package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"roadassist-platform/internal/callsession"
	"roadassist-platform/internal/eventlog"
	"roadassist-platform/internal/fanout"
	"roadassist-platform/internal/tickets"
	"roadassist-platform/pkg/logger"
	"roadassist-platform/pkg/utils"
)

// Handler is the webhook ingress: it authenticates, records, and fans out
// provider lifecycle/transcript events.
//
// Response policy, in order:
//   - bad signature (when a secret is configured): 401, nothing recorded
//   - unparseable body or missing call_id: 400, nothing recorded
//   - everything else: 200, even when downstream processing fails. The
//     provider's retry policy is not ours to drive; internal failures are
//     absorbed and logged to avoid duplicate-storm redeliveries.
type Handler struct {
	// Secret keys the HMAC check. Empty means permissive mode: signatures
	// are not verified and every delivery logs a warning.
	Secret string

	Log     eventlog.Repository
	Hub     *fanout.Hub
	Tickets *tickets.Store

	// Redis releases the per-destination call slot on completion; nil skips
	// slot handling.
	Redis *redis.Client

	Now func() time.Time
}

func (h Handler) Receive(c *gin.Context) {
	log := logger.FromGin(c)

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	if h.Secret != "" {
		sig := c.GetHeader(SignatureHeader)
		if !VerifySignature(h.Secret, raw, sig) {
			log.Warn("webhook signature rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
			return
		}
	} else {
		log.Warn("webhook signature verification disabled; set VOICE_WEBHOOK_SECRET")
	}

	ev, err := callsession.ParseEvent(raw)
	if err != nil {
		log.Warn("webhook payload rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed payload"})
		return
	}

	// The payload is authentic and well-formed: from here on the provider
	// gets a 200 no matter what happens internally.
	receivedAt := now().UTC()
	rec := eventlog.Record{
		ID:         uuid.NewString(),
		CallID:     ev.CallID,
		EventType:  string(ev.Type),
		Payload:    raw,
		ReceivedAt: receivedAt,
	}
	if err := h.Log.Append(c.Request.Context(), rec); err != nil {
		log.Error("webhook log append failed", "call_id", ev.CallID, "err", err)
	}

	if h.Hub != nil {
		h.Hub.Publish(fanout.Event{
			CallID:     ev.CallID,
			Type:       ev.Type,
			Segment:    ev.Segment,
			Transcript: ev.Transcript,
			ReceivedAt: receivedAt,
		})
	}

	if !ev.Type.Recognized() {
		log.Info("ignoring unrecognized webhook event", "call_id", ev.CallID, "event", string(ev.Type))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := h.Tickets.ApplyEvent(ev, receivedAt); err != nil {
		if errors.Is(err, tickets.ErrUnknownCall) {
			log.Warn("webhook references unknown call", "call_id", ev.CallID)
		} else {
			log.Error("webhook apply failed", "call_id", ev.CallID, "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if ev.Type == callsession.EventCallCompleted {
		h.releaseCallSlot(c, ev.CallID)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h Handler) releaseCallSlot(c *gin.Context, callID string) {
	if h.Redis == nil {
		return
	}
	t, ok := h.Tickets.GetByCall(callID)
	if !ok || t.Phone == "" {
		return
	}
	if err := utils.ReleaseCallSlot(c.Request.Context(), h.Redis, utils.CallSlotKey(t.Phone)); err != nil {
		logger.FromGin(c).Warn("call slot release failed", "call_id", callID, "err", err)
	}
}
