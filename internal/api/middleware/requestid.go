package middleware

import (
	"todohub/internal/idgen"

	"github.com/gin-gonic/gin"
)

const RequestIDKey = "X-Request-ID"

// RequestID tags each request with an ID for log correlation. Callers may
// supply their own; generated ones carry the req_ prefix so the two are
// distinguishable in logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDKey)
		if requestID == "" {
			requestID = idgen.NewRequest()
		}
		c.Header(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}
