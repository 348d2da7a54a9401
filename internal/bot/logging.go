package bot

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// WebhookLoggingMiddleware logs webhook requests with the chat context
// extracted from the Telegram update. Message text is logged; this is a
// single-owner deployment where the operator is the user.
func WebhookLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestBody map[string]interface{}
		if c.Request.Body != nil && c.Request.ContentLength > 0 {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err == nil {
				// Restore the body for handlers
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				json.Unmarshal(bodyBytes, &requestBody)
			}
		}

		c.Next()

		duration := time.Since(start)

		logAttrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("duration", duration.String()),
			slog.String("client_ip", c.ClientIP()),
		}

		if msg, ok := requestBody["message"].(map[string]interface{}); ok {
			if chat, ok := msg["chat"].(map[string]interface{}); ok {
				logAttrs = append(logAttrs, slog.Any("chat_id", chat["id"]))
			}
			if from, ok := msg["from"].(map[string]interface{}); ok {
				if username, ok := from["username"].(string); ok {
					logAttrs = append(logAttrs, slog.String("username", username))
				}
			}
			if text, ok := msg["text"].(string); ok {
				logAttrs = append(logAttrs, slog.String("text", text))
			}
		}

		if len(c.Errors) > 0 {
			logAttrs = append(logAttrs, slog.String("errors", c.Errors.String()))
			logger.LogAttrs(c.Request.Context(), slog.LevelError, "Bot webhook request", logAttrs...)
		} else {
			logger.LogAttrs(c.Request.Context(), slog.LevelInfo, "Bot webhook request", logAttrs...)
		}
	}
}
