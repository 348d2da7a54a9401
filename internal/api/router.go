package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"todohub/internal/api/handlers"
	"todohub/internal/api/middleware"
	"todohub/internal/ops"
)

// RouterConfig holds dependencies for the API router
type RouterConfig struct {
	Tasks  ops.TaskService
	APIKey string
	Logger *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.Logging(config.Logger))
	router.Use(middleware.ContentType())

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler()
	router.GET("/health", healthHandler.GetHealth)

	// Display-device routes (with authentication)
	api := router.Group("/api")
	api.Use(authMiddleware(config.APIKey))
	{
		todosHandler := handlers.NewTodosHandler(config.Tasks, config.Logger)
		api.GET("/todos", todosHandler.ListTodos)
		api.POST("/todos", todosHandler.CreateTodo)
		api.GET("/todos/:id", todosHandler.GetTodo)
		api.POST("/todos/:id/complete", todosHandler.CompleteTodo)
		api.DELETE("/todos/:id", todosHandler.DeleteTodo)

		statsHandler := handlers.NewStatsHandler(config.Tasks, config.Logger)
		api.GET("/stats", statsHandler.GetStats)
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey != apiKey {
			c.JSON(401, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
