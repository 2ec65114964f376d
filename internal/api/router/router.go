package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genjishimada/dispatch-core/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "dispatch-api-service",
		})
	})

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	idempotencyHandler := handler.NewIdempotencyHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	notificationHandler := handler.NewNotificationHandler(deps)
	preferenceHandler := handler.NewPreferenceHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		internal := v1.Group("/internal")
		{
			// POST /api/v1/internal/idempotency/claim - Claim an idempotency key
			internal.POST("/idempotency/claim", idempotencyHandler.Claim)

			// DELETE /api/v1/internal/idempotency/claim - Release a claim
			internal.DELETE("/idempotency/claim", idempotencyHandler.Release)

			// GET /api/v1/internal/jobs/:job_id - Get job status
			internal.GET("/jobs/:job_id", jobHandler.GetJob)

			// PATCH /api/v1/internal/jobs/:job_id - Report a job transition
			internal.PATCH("/jobs/:job_id", jobHandler.UpdateJob)
		}

		notifs := v1.Group("/notifications")
		{
			// POST /api/v1/notifications/events - Ingest and dispatch an event
			notifs.POST("/events", notificationHandler.CreateEvent)

			// PATCH /api/v1/notifications/events/:event_id/read - Mark one event read
			notifs.PATCH("/events/:event_id/read", notificationHandler.MarkRead)

			// PATCH /api/v1/notifications/events/:event_id/dismiss - Remove from tray
			notifs.PATCH("/events/:event_id/dismiss", notificationHandler.Dismiss)

			// POST /api/v1/notifications/events/:event_id/delivery-result - Record one channel outcome
			notifs.POST("/events/:event_id/delivery-result", notificationHandler.RecordDeliveryResult)

			// GET /api/v1/notifications/events/:event_id/delivery-results - List channel outcomes
			notifs.GET("/events/:event_id/delivery-results", notificationHandler.ListDeliveryResults)

			users := notifs.Group("/users/:user_id")
			{
				// GET /api/v1/notifications/users/:user_id/events - Tray listing
				users.GET("/events", notificationHandler.ListEvents)

				// GET /api/v1/notifications/users/:user_id/unread-count
				users.GET("/unread-count", notificationHandler.UnreadCount)

				// PATCH /api/v1/notifications/users/:user_id/read-all
				users.PATCH("/read-all", notificationHandler.MarkAllRead)

				// GET /api/v1/notifications/users/:user_id/preferences - Resolved view
				users.GET("/preferences", preferenceHandler.GetPreferences)

				// PUT /api/v1/notifications/users/:user_id/preferences/bulk
				users.PUT("/preferences/bulk", preferenceHandler.BulkUpdatePreferences)

				// PUT /api/v1/notifications/users/:user_id/preferences/:event_type/:channel?enabled=
				users.PUT("/preferences/:event_type/:channel", preferenceHandler.UpdatePreference)

				// GET /api/v1/notifications/users/:user_id/should-deliver?event_type&channel
				users.GET("/should-deliver", preferenceHandler.ShouldDeliver)

				// GET /api/v1/notifications/users/:user_id/legacy-bitmask
				users.GET("/legacy-bitmask", preferenceHandler.LegacyBitmask)
			}
		}
	}

	return r
}
