package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todohub/config"
	"todohub/internal/msauth"
	"todohub/internal/ops"
)

// OpsHandler executes structured operation requests.
type OpsHandler interface {
	Handle(ctx context.Context, req *ops.Request) *ops.Result
}

// Parser turns free-text messages and photos into structured operation
// requests.
type Parser interface {
	Parse(ctx context.Context, text string, now time.Time) *ops.Request
	ParseImage(ctx context.Context, image []byte, mimeType, caption string, now time.Time) *ops.Request
}

// CredentialManager is the slice of the refresh coordinator the token
// commands need.
type CredentialManager interface {
	EnsureFresh(ctx context.Context, force bool) (*msauth.Record, error)
	AuthCodeURL() (url, state string)
	Authorize(ctx context.Context, code string) (*msauth.Record, error)
	Status(ctx context.Context) (*msauth.Record, error)
}

// Bot represents the Telegram bot
type Bot struct {
	api         *tgbotapi.BotAPI
	facade      OpsHandler
	parser      Parser
	credentials CredentialManager
	config      *config.BotConfig
	logger      *slog.Logger
	httpClient  *http.Client
}

// NewBot creates a new Telegram bot instance
func NewBot(cfg *config.BotConfig, facade OpsHandler, parser Parser, credentials CredentialManager, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &Bot{
		api:         api,
		facade:      facade,
		parser:      parser,
		credentials: credentials,
		config:      cfg,
		logger:      logger,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SetWebhook configures the webhook for the bot
func (b *Bot) SetWebhook() error {
	webhookConfig, _ := tgbotapi.NewWebhook(b.config.Telegram.WebhookURL)

	_, err := b.api.Request(webhookConfig)
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("failed to get webhook info: %w", err)
	}

	b.logger.Info("Webhook configured",
		"url", info.URL,
		"pending_updates", info.PendingUpdateCount,
	)

	return nil
}

// HandleUpdate processes a Telegram update
func (b *Bot) HandleUpdate(update tgbotapi.Update) error {
	ctx := context.Background()

	if update.Message == nil || update.Message.From == nil {
		// Ignore updates without a message
		return nil
	}

	userID := update.Message.From.ID
	if !b.config.IsUserAllowed(userID) {
		b.logger.Warn("Unauthorized access attempt",
			"user_id", userID,
		)
		return b.sendMessage(update.Message.Chat.ID,
			"⛔ You are not authorized to use this bot.")
	}

	return b.handleMessage(ctx, update.Message)
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	b.logger.Info("Received message",
		"user_id", message.From.ID,
		"username", message.From.UserName,
		"text", message.Text,
	)

	if !message.IsCommand() {
		if len(message.Photo) > 0 {
			return b.handlePhoto(ctx, message)
		}
		return b.handleFreeText(ctx, message)
	}

	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "list", "tasks":
		return b.handleList(ctx, message, ops.FilterActive)
	case "all":
		return b.handleList(ctx, message, ops.FilterAll)
	case "search":
		return b.handleSearch(ctx, message)
	case "token_status":
		return b.adminOnly(message, b.handleTokenStatus)(ctx)
	case "refresh_token":
		return b.adminOnly(message, b.handleRefreshToken)(ctx)
	case "get_auth_link":
		return b.adminOnly(message, b.handleGetAuthLink)(ctx)
	case "auth":
		return b.adminOnly(message, b.handleAuth)(ctx)
	default:
		return b.sendMessage(message.Chat.ID,
			"Unknown command. Use /start to see available commands.")
	}
}

// adminOnly gates credential management commands behind the admin list.
func (b *Bot) adminOnly(message *tgbotapi.Message, handler func(context.Context, *tgbotapi.Message) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if !b.config.IsAdmin(message.From.ID) {
			b.logger.Warn("Non-admin attempted credential command",
				"user_id", message.From.ID,
				"command", message.Command(),
			)
			return b.sendMessage(message.Chat.ID,
				"⛔ This command is restricted to administrators.")
		}
		return handler(ctx, message)
	}
}

// handleFreeText routes a plain message through the semantic collaborator.
func (b *Bot) handleFreeText(ctx context.Context, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return b.sendMessage(message.Chat.ID,
			"I can read text and photos. Write what you need or send a picture of it.")
	}

	request := b.parser.Parse(ctx, text, time.Now())
	result := b.facade.Handle(ctx, request)

	return b.sendMessage(message.Chat.ID, FormatResult(request, result))
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			"chat_id", chatID,
			"error", err,
		)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
