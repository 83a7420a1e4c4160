package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/enach-client/internal/agent/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", healthHandler(deps))

	watchHandler := handler.NewWatchHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		watches := v1.Group("/watches")
		{
			// GET /api/v1/watches - List watched jobs
			watches.GET("", watchHandler.ListWatches)

			// GET /api/v1/watches/:job_id - Get one watch
			watches.GET("/:job_id", watchHandler.GetWatch)

			// POST /api/v1/watches/:job_id - Watch a job
			watches.POST("/:job_id", watchHandler.CreateWatch)

			// DELETE /api/v1/watches/:job_id - Stop watching a job
			watches.DELETE("/:job_id", watchHandler.DeleteWatch)
		}

		// GET /api/v1/jobs/:job_id - Current job status from the backend
		v1.GET("/jobs/:job_id", watchHandler.GetJob)
	}

	return r
}

func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "healthy",
			"service": deps.Service,
			"watches": len(deps.Watches.Snapshot()),
		}

		if deps.Database != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			if err := deps.Database.HealthCheck(ctx); err != nil {
				deps.Logger.Error("Database health check failed", slog.String("error", err.Error()))
				body["status"] = "unhealthy"
				body["error"] = "database unavailable"
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}

		c.JSON(http.StatusOK, body)
	}
}
