package server

import (
	"github.com/OFFIS-RIT/kgops/internal/server/middleware"
	"github.com/OFFIS-RIT/kgops/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Batch triggers
	apiRoutes.POST("/migrate", routes.MigrateAllHandler, middleware.RequireAdmin)

	userRoutes := apiRoutes.Group("/users/:userId", middleware.RequireUserAccess)
	userRoutes.POST("/migrate", routes.MigrateUserHandler)
	userRoutes.POST("/rebuild", routes.RebuildUserHandler)
	userRoutes.POST("/pipeline", routes.PipelineUserHandler)

	// Reports
	userRoutes.GET("/validate", routes.ValidateUserHandler)
	userRoutes.GET("/analytics", routes.AnalyticsUserHandler)
	userRoutes.GET("/export", routes.ExportUserHandler)

	// Training and fine-tuning
	userRoutes.POST("/training/collect", routes.CollectHandler)
	userRoutes.GET("/finetune/jobs", routes.ListJobsHandler)
	userRoutes.POST("/finetune/jobs", routes.SubmitJobHandler)
	userRoutes.GET("/finetune/jobs/:jobId", routes.JobStatusHandler)
	userRoutes.POST("/finetune/evaluate", routes.EvaluateHandler)
}
