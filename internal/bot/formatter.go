package bot

import (
	"fmt"
	"strings"
	"time"

	"todohub/internal/msauth"
	"todohub/internal/ops"
)

// FormatResult formats a facade result for a free-text request.
func FormatResult(request *ops.Request, result *ops.Result) string {
	switch result.Status {
	case ops.StatusOK:
		return formatSuccess(request, result)
	case ops.StatusNotFound:
		if result.Message != "" {
			return "🤷 " + result.Message
		}
		return "🤷 Nothing matched."
	case ops.StatusAmbiguous:
		return formatAmbiguous(result)
	case ops.StatusAuthRequired:
		return "🔒 " + result.Message + "\nAn administrator can reconnect it with /get\\_auth\\_link."
	default:
		if result.Message != "" {
			return "❌ " + result.Message
		}
		return "❌ Something went wrong."
	}
}

func formatSuccess(request *ops.Request, result *ops.Result) string {
	switch request.Intent {
	case ops.IntentCreate:
		if len(result.Tasks) == 1 {
			return "➕ Added: " + formatTaskLine(result.Tasks[0])
		}
	case ops.IntentDecompose:
		var sb strings.Builder
		sb.WriteString("➕ Added with steps:\n")
		for _, task := range result.Tasks {
			sb.WriteString(formatTaskLine(task))
			sb.WriteString("\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	case ops.IntentComplete:
		if len(result.Tasks) == 1 {
			return "✅ Done: " + result.Tasks[0].Title
		}
	case ops.IntentDelete:
		return "🗑 " + result.Message
	case ops.IntentUpdate:
		if len(result.Tasks) == 1 {
			return "✏️ Updated: " + formatTaskLine(result.Tasks[0])
		}
	case ops.IntentList, ops.IntentSearch:
		return FormatTaskList(result, request.Filter == ops.FilterAll)
	}

	if result.Message != "" {
		return "👍 " + result.Message
	}
	return "👍 Done."
}

func formatAmbiguous(result *ops.Result) string {
	var sb strings.Builder
	sb.WriteString("🤔 " + result.Message + "\n")
	for _, task := range result.Tasks {
		sb.WriteString("  • ")
		sb.WriteString(formatTaskLine(task))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTaskList formats a list or search result.
func FormatTaskList(result *ops.Result, includeCompleted bool) string {
	if result.Status != ops.StatusOK {
		return FormatResult(&ops.Request{Intent: ops.IntentList}, result)
	}

	if len(result.Tasks) == 0 {
		return "🎉 No open tasks."
	}

	header := "📋 *Open tasks:*\n"
	if includeCompleted {
		header = "🗂 *All tasks:*\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	for _, task := range result.Tasks {
		if task.Completed {
			sb.WriteString("  ✅ ")
		} else {
			sb.WriteString("  ⬜ ")
		}
		sb.WriteString(formatTaskLine(task))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTaskLine(task ops.TaskView) string {
	if task.Due != nil {
		return fmt.Sprintf("%s _(due %s)_", task.Title, task.Due.Format("Mon, Jan 2"))
	}
	return task.Title
}

// FormatCredentialStatus renders the stored record with masked tokens.
func FormatCredentialStatus(record *msauth.Record) string {
	var sb strings.Builder
	sb.WriteString("🔑 *Credential status*\n")
	sb.WriteString(fmt.Sprintf("State: %s\n", record.State))
	sb.WriteString(fmt.Sprintf("Account: %s\n", record.AccountKind))
	if record.TenantID != "" {
		sb.WriteString(fmt.Sprintf("Tenant: %s\n", record.TenantID))
	}
	sb.WriteString(fmt.Sprintf("Access token: %s\n", maskToken(record.AccessToken)))
	sb.WriteString(fmt.Sprintf("Refresh token: %s\n", maskToken(record.RefreshToken)))
	if !record.ExpiresAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Expires: %s", record.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC")))
		if record.Expired(time.Now()) {
			sb.WriteString(" (expired)")
		}
		sb.WriteString("\n")
	}
	if len(record.Scopes) > 0 {
		sb.WriteString("Scopes: " + strings.Join(record.Scopes, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// maskToken keeps only the first and last few characters of a token.
func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	// Short tokens would leak most of their characters through a suffix.
	if len(token) < 3 {
		return "(masked)"
	}
	if len(token) <= 10 {
		return "..." + token[len(token)-2:]
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// FormatError formats an error for the chat.
func FormatError(err error) string {
	return "❌ " + err.Error()
}
