package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(), middleware.Metrics())

	authLimiter := middleware.AuthRateLimit(svc.redis, &svc.cfg.RateLimit)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api")
	api.Use(middleware.AuditLog(svc.auditLogService))
	{
		// Auth routes (public, rate limited)
		public := api.Group("", authLimiter)
		{
			public.POST("/registration", svc.authHandler.Register)
			public.POST("/login", svc.authHandler.Login)
			public.POST("/token/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.authService))
		{
			protected.POST("/logout", svc.authHandler.Logout)
			protected.GET("/email-check", svc.authHandler.EmailCheck)

			// Boards
			protected.GET("/boards", svc.boardHandler.List)
			protected.POST("/boards", svc.boardHandler.Create)
			protected.GET("/boards/:id", svc.boardHandler.Get)
			protected.PATCH("/boards/:id", svc.boardHandler.Update)
			protected.DELETE("/boards/:id", svc.boardHandler.Delete)
			protected.POST("/boards/:id/add-member", svc.boardHandler.AddMember)
			protected.POST("/boards/:id/remove-member", svc.boardHandler.RemoveMember)
			protected.POST("/boards/:id/invitations", svc.boardHandler.Invite)
			protected.POST("/invitations/:token/accept", svc.boardHandler.AcceptInvitation)

			// Tasks
			protected.GET("/tasks", svc.taskHandler.List)
			protected.GET("/tasks/assigned-to-me", svc.taskHandler.AssignedToMe)
			protected.GET("/tasks/reviewing", svc.taskHandler.Reviewing)
			protected.POST("/tasks", svc.taskHandler.Create)
			protected.GET("/tasks/:id", svc.taskHandler.Get)
			protected.PATCH("/tasks/:id", svc.taskHandler.Update)
			protected.DELETE("/tasks/:id", svc.taskHandler.Delete)

			// Comments
			protected.GET("/tasks/:id/comments", svc.taskHandler.ListComments)
			protected.POST("/tasks/:id/comments", svc.taskHandler.CreateComment)
			protected.DELETE("/tasks/:id/comments/:comment_id", svc.taskHandler.DeleteComment)
		}

		// Staff only routes
		staff := api.Group("")
		staff.Use(middleware.AuthRequired(svc.authService), middleware.StaffRequired())
		{
			staff.GET("/audit-logs", svc.auditLogHandler.List)
		}
	}
}
