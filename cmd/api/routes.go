package main

import (
	"roadassist-platform/internal/auth"
	"roadassist-platform/internal/fanout"
	"roadassist-platform/internal/httpapi"
	"roadassist-platform/internal/rbac"
	"roadassist-platform/internal/webhook"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, ingress webhook.Handler, hub *fanout.Hub, authManager *auth.Manager) {
	// public
	r.GET("/healthz", h.Health)
	r.GET("/api/ping", h.Ping)

	// Provider webhooks (public path, HMAC-authenticated per delivery).
	r.POST("/webhooks/voice", ingress.Receive)

	// Push channel for live call updates. The UI authenticates the session
	// separately; the stream carries no secrets, only call events.
	r.GET("/ws", hub.ServeWS)

	// Token issuance.
	r.POST("/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(authManager))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// CALLS routes
		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleAgent))
		{
			calls.POST("", h.InitiateCall)
			calls.GET("/events", h.PollEvents)
		}

		// TICKETS routes: the agent dashboard surface.
		ticketsGroup := v1.Group("/tickets")
		ticketsGroup.Use(rbac.RequireAnyRole(rbac.RoleAgent))
		{
			ticketsGroup.GET("", h.ListTickets)
			ticketsGroup.GET("/:id", h.GetTicket)
			ticketsGroup.POST("/:id/messages", h.AddTicketMessage)
		}

		// IMAGES routes
		images := v1.Group("/images")
		images.Use(rbac.RequireAnyRole(rbac.RoleCustomer, rbac.RoleAgent))
		{
			images.POST("/analyze", h.AnalyzeImage)
			images.GET("/latest", h.LatestAnalysis)
		}
	}
}
