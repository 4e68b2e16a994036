package main

import (
	"database/sql"
	"time"

	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/webhook"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, wh webhook.Handlers, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.PingPostgres(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public). The token path segment is the only
	// active authenticity check; see webhook.Guard.
	r.POST("/webhooks/exotel/call-callback/:callbackId/:tokenMd5", wh.VoiceCallback)
	r.POST("/webhooks/exotel/sms-callback/:callbackId/:tokenMd5", wh.SMSCallback)

	// auth (public)
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// Outbound actions. Any authenticated call-center role may dial.
		actions := v1.Group("", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))
		{
			actions.POST("/calls/connect", h.ConnectCall)
			actions.POST("/calls/flow", h.FlowCall)
			actions.POST("/sms/send", h.SendSMS)
		}

		// Stored records and aggregates.
		v1.GET("/calls/:sid", h.GetCall)
		v1.GET("/sms/:sid", h.GetSMS)
		v1.GET("/analytics/summary", h.AnalyticsSummary)

		v1.GET("/heartbeat/latest", h.HeartbeatLatest)
		v1.GET("/heartbeat/history", h.HeartbeatHistory)
		v1.GET("/heartbeat/uptime", h.HeartbeatUptime)

		v1.GET("/numbers", h.ListNumbers)
		v1.GET("/numbers/:id", h.GetNumber)

		// ADMIN routes: manual triggers and directory mutation.
		admin := v1.Group("/admin", rbac.RequireAdmin())
		{
			admin.POST("/sync/calls", h.TriggerBulkSync)
			admin.POST("/sync/directory", h.TriggerDirectorySync)
			admin.POST("/heartbeat/poll", h.TriggerHeartbeat)
			admin.GET("/sync/history", h.SyncHistory)

			admin.POST("/numbers", h.CreateNumber)
			admin.PATCH("/numbers/:id", h.UpdateNumber)
			admin.PUT("/numbers/:id/primary", h.SetPrimaryNumber)
			admin.DELETE("/numbers/:id", h.DeleteNumber)

			admin.DELETE("/calls/:sid/recording", h.ClearRecording)
		}
	}
}
