package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"roadassist-platform/internal/auth"
	"roadassist-platform/internal/eventlog"
	"roadassist-platform/internal/tickets"
	"roadassist-platform/internal/vision"
	"roadassist-platform/internal/voice"
	"roadassist-platform/pkg/logger"
	"roadassist-platform/pkg/utils"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Voice   voice.Provider
	Tickets *tickets.Store
	Events  eventlog.Repository
	Vision  *vision.Service

	DB    *sql.DB
	Redis *redis.Client

	// CallCap limits concurrent outbound calls per destination number.
	CallCap int
	// SlotTTL guards against leaked slots when the completion webhook never
	// arrives. Keep it above the provider-side max call duration.
	SlotTTL time.Duration

	Now func() time.Time
}

const defaultSlotTTL = 15 * time.Minute
const maxImageBytes = 10 << 20

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateCallRequest struct {
	PhoneNumber string `json:"phone_number"`

	CustomerName    string   `json:"customer_name"`
	Location        string   `json:"location"`
	Vehicle         string   `json:"vehicle"`
	Issue           string   `json:"issue"`
	Category        string   `json:"category"`
	PreviousIssues  []string `json:"previous_issues"`
	LastServiceDate string   `json:"last_service_date"`
	Membership      string   `json:"membership"`
	ImageSummary    string   `json:"image_summary"`
}

// InitiateCall places one outbound AI-agent call and opens a ticket for it.
//
// A ticket exists either way: a provider failure downgrades to the call-less
// manual path instead of losing the customer's request.
func (h Handlers) InitiateCall(c *gin.Context) {
	log := logger.FromGin(c)

	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	number, err := voice.NormalizeNumber(req.PhoneNumber)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return
	}

	// No explicit image summary: fall back to the most recent stored analysis.
	imageSummary := req.ImageSummary
	if imageSummary == "" && h.Vision != nil && h.Vision.Enabled() {
		if a, err := h.Vision.Latest(c.Request.Context()); err == nil {
			imageSummary = a.Summary
		}
	}

	slotKey := utils.CallSlotKey(number)
	if h.Redis != nil {
		limit := h.CallCap
		if limit <= 0 {
			limit = 1
		}
		ttl := h.SlotTTL
		if ttl <= 0 {
			ttl = defaultSlotTTL
		}
		ok, err := utils.AcquireCallSlot(c.Request.Context(), h.Redis, slotKey, limit, ttl)
		if err != nil {
			log.Error("call slot acquire failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call gating unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "a call to this number is already in progress"})
			return
		}
	}

	result, err := h.Voice.InitiateCall(c.Request.Context(), voice.CallRequest{
		PhoneNumber: number,
		Context: voice.CallContext{
			CustomerName:    req.CustomerName,
			Location:        req.Location,
			Vehicle:         req.Vehicle,
			Issue:           req.Issue,
			PreviousIssues:  req.PreviousIssues,
			LastServiceDate: req.LastServiceDate,
			Membership:      req.Membership,
			ImageSummary:    imageSummary,
		},
	})
	if err != nil {
		if h.Redis != nil {
			_ = utils.ReleaseCallSlot(c.Request.Context(), h.Redis, slotKey)
		}

		// The call never started but the customer still needs help: open the
		// ticket on the manual path.
		t := h.Tickets.Create(tickets.Ticket{
			CustomerName: req.CustomerName,
			Phone:        number,
			Vehicle:      req.Vehicle,
			Location:     req.Location,
			Issue:        req.Issue,
			Category:     req.Category,
			Status:       tickets.StatusRequiresHuman,
		})

		status := http.StatusBadGateway
		var rej *voice.RejectionError
		switch {
		case errors.As(err, &rej):
			log.Warn("call initiation rejected", "status", rej.StatusCode)
		case errors.Is(err, voice.ErrProviderUnavailable):
			log.Error("call provider unreachable", "err", err)
		default:
			log.Error("call initiation failed", "err", err)
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":     "call could not be started",
			"ticket_id": t.ID,
		})
		return
	}

	t := h.Tickets.Create(tickets.Ticket{
		CustomerName: req.CustomerName,
		Phone:        number,
		Vehicle:      req.Vehicle,
		Location:     req.Location,
		Issue:        req.Issue,
		Category:     req.Category,
		CallID:       result.CallID,
	})

	log.Info("call initiated", "call_id", result.CallID, "ticket_id", t.ID)
	c.JSON(http.StatusOK, gin.H{
		"call_id":   result.CallID,
		"status":    result.Status,
		"ticket_id": t.ID,
	})
}

// PollEvents serves the reconciliation read path: every logged webhook event
// with received_at strictly after `since`, in receipt order.
func (h Handlers) PollEvents(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}
	callID := c.Query("call_id")

	records, err := h.Events.Since(c.Request.Context(), since, callID)
	if err != nil {
		logger.FromGin(c).Error("event log read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event log unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"webhooks": records,
		"filters": gin.H{
			"since":   c.Query("since"),
			"call_id": callID,
		},
	})
}

// --- Tickets ---

func (h Handlers) ListTickets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickets": h.Tickets.List()})
}

func (h Handlers) GetTicket(c *gin.Context) {
	t, ok := h.Tickets.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

type addMessageRequest struct {
	Content string `json:"content"`
}

func (h Handlers) AddTicketMessage(c *gin.Context) {
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}

	role, _ := auth.Role(c.Request.Context())
	sender := tickets.SenderCustomer
	if role == "agent" || role == "admin" {
		sender = tickets.SenderAgent
	}

	m, err := h.Tickets.AddMessage(c.Param("id"), sender, req.Content)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- Vision ---

// AnalyzeImage relays one uploaded image to the vision provider and stores the
// summary under a server id.
func (h Handlers) AnalyzeImage(c *gin.Context) {
	if h.Vision == nil || !h.Vision.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "image analysis not configured"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	if len(data) > maxImageBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	a, err := h.Vision.AnalyzeAndStore(c.Request.Context(), data, header.Header.Get("Content-Type"))
	if err != nil {
		var rej *vision.RejectionError
		if errors.As(err, &rej) {
			logger.FromGin(c).Warn("vision provider rejected image", "status", rej.StatusCode)
		} else {
			logger.FromGin(c).Error("image analysis failed", "err", err)
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "image analysis failed"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) LatestAnalysis(c *gin.Context) {
	if h.Vision == nil || !h.Vision.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "image analysis not configured"})
		return
	}
	a, err := h.Vision.Latest(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no analyses yet"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// --- Health ---

func (h Handlers) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Health reports dependency status with bounded checks. Degraded dependencies
// return 503 so load balancers rotate the instance out.
func (h Handlers) Health(c *gin.Context) {
	components := gin.H{}
	healthy := true

	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			components["postgres"] = "down"
			healthy = false
		} else {
			components["postgres"] = "ok"
		}
	}
	if h.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			components["redis"] = "down"
			healthy = false
		} else {
			components["redis"] = "ok"
		}
		cancel()
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "components": components})
}
