package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"task-tracker-api/internal/handlers"
	"task-tracker-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the pieces the router is assembled from.
type Dependencies struct {
	Tasks          *handlers.TaskHandler
	Events         *handlers.EventsHandler
	Health         Pinger
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	ginRouter.Use(middleware.RequestID())
	ginRouter.Use(middleware.AccessLog(logger))

	// CORS middleware (for frontend integration)
	ginRouter.Use(middleware.CORS(deps.AllowedOrigins))

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health.Ping(ctx); err != nil {
				logger.Error("health check", slog.Any("error", err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unavailable",
					"message": "Database is not reachable",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task Tracker API is running",
		})
	})

	api := ginRouter.Group("/api")
	{
		// Task endpoints
		api.GET("/tasks", deps.Tasks.ListTasks)
		api.GET("/tasks/stats", deps.Tasks.TaskStats)
		api.GET("/tasks/:id", deps.Tasks.GetTask)
		api.POST("/tasks", deps.Tasks.CreateTask)
		api.PUT("/tasks/:id", deps.Tasks.UpdateTask)
		api.DELETE("/tasks/:id", deps.Tasks.DeleteTask)

		if deps.Events != nil {
			api.GET("/tasks/events", deps.Events.TaskEvents)
		}
	}

	return ginRouter
}
