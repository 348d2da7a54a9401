package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery converts a handler panic into a 500 response instead of a
// dropped connection, and logs it with the request context.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Recovered from handler panic",
					"component", "api",
					"request_id", c.GetString(RequestIDKey),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", err,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"code":  "INTERNAL_ERROR",
				})
			}
		}()
		c.Next()
	}
}
