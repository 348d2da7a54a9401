package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todohub/internal/ops"
)

// handleStart handles the /start command
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	text := `👋 *Welcome to the To Do bot!*

Just write what you need and I turn it into a task:
"_buy milk tomorrow evening_", "_I called Bob, check that off_".
You can also send me a photo of a bill, a note or a list.

*Commands:*

📋 /list - Show open tasks
🗂 /all - Show all tasks, finished ones included
🔍 /search <text> - Find tasks by title

*Administration:*

🔑 /token\_status - Show credential state
♻️ /refresh\_token - Force a token refresh
🔗 /get\_auth\_link - Get the Microsoft sign-in link
✅ /auth <code> - Finish sign-in with the redirect code`

	return b.sendMessage(message.Chat.ID, text)
}

// handleList handles the /list and /all commands
func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message, filter string) error {
	result := b.facade.Handle(ctx, &ops.Request{
		Intent: ops.IntentList,
		Filter: filter,
	})

	return b.sendMessage(message.Chat.ID, FormatTaskList(result, filter == ops.FilterAll))
}

// handleSearch handles the /search command
func (b *Bot) handleSearch(ctx context.Context, message *tgbotapi.Message) error {
	query := strings.TrimSpace(message.CommandArguments())
	if query == "" {
		return b.sendMessage(message.Chat.ID, "Usage: /search <text>")
	}

	result := b.facade.Handle(ctx, &ops.Request{
		Intent: ops.IntentSearch,
		Query:  query,
	})

	return b.sendMessage(message.Chat.ID, FormatTaskList(result, false))
}
