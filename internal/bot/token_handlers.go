package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todohub/internal/msauth"
)

// handleTokenStatus handles the /token_status command. Tokens are shown
// masked; the full values never leave the store.
func (b *Bot) handleTokenStatus(ctx context.Context, message *tgbotapi.Message) error {
	record, err := b.credentials.Status(ctx)
	if err != nil {
		if errors.Is(err, msauth.ErrNotFound) {
			return b.sendMessage(message.Chat.ID,
				"No credentials stored yet. Use /get_auth_link to connect an account.")
		}
		return b.sendMessage(message.Chat.ID, FormatError(err))
	}

	status := FormatCredentialStatus(record)
	if record.Authorized() {
		if _, err := b.credentials.EnsureFresh(ctx, false); err != nil {
			status += "\n⚠️ Provider check failed: " + err.Error()
		} else {
			status += "\n✅ Provider reachable"
		}
	}

	return b.sendMessage(message.Chat.ID, status)
}

// handleRefreshToken handles the /refresh_token command
func (b *Bot) handleRefreshToken(ctx context.Context, message *tgbotapi.Message) error {
	record, err := b.credentials.EnsureFresh(ctx, true)
	if err != nil {
		if errors.Is(err, msauth.ErrReauthorizationRequired) {
			return b.sendMessage(message.Chat.ID,
				"❌ The refresh token was rejected. Use /get_auth_link to reconnect the account.")
		}
		return b.sendMessage(message.Chat.ID, FormatError(err))
	}

	b.logger.Info("Manual token refresh completed", "expires_at", record.ExpiresAt)
	return b.sendMessage(message.Chat.ID,
		"♻️ Token refreshed. New expiry: "+record.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC"))
}

// handleGetAuthLink handles the /get_auth_link command
func (b *Bot) handleGetAuthLink(ctx context.Context, message *tgbotapi.Message) error {
	url, state := b.credentials.AuthCodeURL()

	b.logger.Info("Issued authorization link", "state", state)
	return b.sendMessage(message.Chat.ID,
		"🔗 Open this link, sign in with your Microsoft account and send me the "+
			"code from the redirect URL with /auth <code>:\n\n"+url)
}

// handleAuth handles the /auth <code> command
func (b *Bot) handleAuth(ctx context.Context, message *tgbotapi.Message) error {
	code := strings.TrimSpace(message.CommandArguments())
	if code == "" {
		return b.sendMessage(message.Chat.ID, "Usage: /auth <authorization code>")
	}

	record, err := b.credentials.Authorize(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, msauth.ErrInvalidGrant):
			return b.sendMessage(message.Chat.ID,
				"❌ The authorization code was rejected. Codes are single-use and "+
					"short-lived; request a fresh link with /get_auth_link.")
		case errors.Is(err, msauth.ErrMissingScopes):
			return b.sendMessage(message.Chat.ID,
				"❌ The account did not grant task permissions. Re-run the link and "+
					"accept all requested permissions.")
		default:
			return b.sendMessage(message.Chat.ID, FormatError(err))
		}
	}

	b.logger.Info("Account connected",
		"account_kind", record.AccountKind,
		"expires_at", record.ExpiresAt,
	)
	return b.sendMessage(message.Chat.ID,
		"✅ Account connected. You can manage your tasks now.")
}
