package routes

import (
	"github.com/gin-gonic/gin"

	"peer-review-api/controllers"
	"peer-review-api/middleware"
	"peer-review-api/models"
	"peer-review-api/storage"
)

// Handlers bundles the controllers mounted under /api/v1.
type Handlers struct {
	Auth          *controllers.AuthController
	Papers        *controllers.PaperController
	Deadlines     *controllers.DeadlineController
	Notifications *controllers.NotificationController
	Hubs          *controllers.HubController
}

func SetupRoutes(router *gin.Engine, h Handlers, jwtSecret string, users storage.UserStore) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", h.Auth.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Peer Review API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret, users))
		{
			protected.GET("/profile", h.Auth.GetProfile)

			papers := protected.Group("/papers")
			{
				papers.POST("", h.Papers.CreatePaper)
				papers.GET("", h.Papers.ListPapers)
				papers.GET("/:id", h.Papers.GetPaper)
				papers.POST("/:id/submit", h.Papers.SubmitPaper)

				// Reviewer assignment
				papers.POST("/:id/reviewers", h.Papers.InviteReviewer)
				papers.DELETE("/:id/reviewers/:reviewerId", h.Papers.RemoveReviewer)
				papers.POST("/:id/slots/accept", h.Papers.AcceptSlot)
				papers.POST("/:id/slots/decline", h.Papers.DeclineSlot)

				// Reviews
				papers.POST("/:id/reviews", h.Papers.SubmitReview)
				papers.GET("/:id/reviews", h.Papers.ListReviews)
				papers.POST("/:id/check-completion", h.Papers.CheckCompletion)

				// Corrections and publication
				papers.POST("/:id/corrections", h.Papers.SubmitCorrections)
				papers.POST("/:id/publication/request", h.Papers.RequestPublication)
				papers.POST("/:id/publication/approve", h.Papers.ApprovePublication)
				papers.POST("/:id/publication/reject", h.Papers.RejectPublication)
				papers.POST("/:id/final-decision", h.Papers.FinalDecision)
				papers.POST("/:id/withdraw", h.Papers.Withdraw)
				papers.PUT("/:id/phase-timestamps/:key", h.Papers.SetPhaseTimestamp)

				// Deadlines
				papers.GET("/:id/assignments/:reviewerId/deadline", h.Deadlines.GetDeadline)
				papers.PUT("/:id/assignments/:reviewerId/deadline", middleware.RequireRole(models.RoleAdmin), h.Deadlines.UpdateDeadline)
			}

			protected.GET("/assignments/mine", h.Deadlines.ListMine)

			// Notifications
			protected.GET("/notifications", h.Notifications.GetNotifications)
			protected.GET("/notifications/counter", h.Notifications.GetNotificationCounter)
			protected.PATCH("/notifications/read-all", h.Notifications.MarkAllNotificationsRead)
			protected.PATCH("/notifications/:id/read", h.Notifications.MarkNotificationRead)

			// Hubs
			hubs := protected.Group("/hubs")
			{
				hubs.POST("", middleware.RequireRole(models.RoleEditor, models.RoleAdmin), h.Hubs.CreateHub)
				hubs.GET("/:id", h.Hubs.GetHub)
				hubs.POST("/:id/reviewers", h.Hubs.AddReviewer)
			}

			// Admin only
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/deadlines", h.Deadlines.CheckDeadlines)
				admin.POST("/deadlines/sweep", h.Deadlines.Sweep)
			}
		}
	}
}
