package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookHandler handles incoming webhook requests from Telegram
type WebhookHandler struct {
	bot    *Bot
	logger *slog.Logger
	secret string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(bot *Bot, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		bot:    bot,
		logger: logger,
		secret: secret,
	}
}

// HandleWebhook processes incoming webhook requests
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	// Verify secret token if configured
	if h.secret != "" {
		token := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
		if token != h.secret {
			h.logger.Warn("Invalid webhook secret token",
				"remote_addr", c.ClientIP(),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid secret token",
			})
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		h.logger.Error("Failed to decode update", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid update format",
		})
		return
	}

	h.logger.Debug("Received webhook update",
		"update_id", update.UpdateID,
	)

	if err := h.bot.HandleUpdate(update); err != nil {
		h.logger.Error("Failed to handle update",
			"update_id", update.UpdateID,
			"error", err,
		)
		// Still return 200 to Telegram to avoid retries
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
	})
}
