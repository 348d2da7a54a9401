package nlu

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"todohub/internal/ops"
)

// DefaultBaseURL is the OpenAI-compatible chat completions endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

const (
	defaultModel    = "gpt-4o-mini"
	defaultAttempts = 2
	toolName        = "submit_task_operation"
)

// Config contains semantic-analysis client configuration.
type Config struct {
	BaseURL string        // API base URL, DefaultBaseURL when empty
	APIKey  string        // bearer API key
	Model   string        // model name, defaultModel when empty
	Timeout time.Duration // per-request HTTP timeout
}

// Client turns free-text user messages into structured operation requests
// by calling an OpenAI-compatible chat completions API with a single
// function-calling tool. The semantic work happens on the remote side;
// this client only carries the boundary.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a semantic-analysis client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Parse extracts a structured operation request from a user message. When
// the remote call keeps failing or returns something unusable, it falls
// back to a create request carrying the raw text, so the user's message is
// never dropped.
func (c *Client) Parse(ctx context.Context, text string, now time.Time) *ops.Request {
	var lastErr error
	for attempt := 1; attempt <= defaultAttempts; attempt++ {
		request, err := c.parseOnce(ctx, c.chatRequest(text, now))
		if err == nil {
			return request
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	c.logger.Warn("Falling back to create with raw title", "error", lastErr)
	return &ops.Request{Intent: ops.IntentCreate, Title: text}
}

// ParseImage extracts a structured operation request from a photo the user
// sent, optionally annotated with a caption. The image travels to the model
// as a base64 data URL; nothing is decoded locally. The fallback is a
// create request carrying the caption, or a placeholder title when there
// is none.
func (c *Client) ParseImage(ctx context.Context, image []byte, mimeType, caption string, now time.Time) *ops.Request {
	var lastErr error
	for attempt := 1; attempt <= defaultAttempts; attempt++ {
		request, err := c.parseOnce(ctx, c.imageChatRequest(image, mimeType, caption, now))
		if err == nil {
			return request
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	c.logger.Warn("Falling back to create from photo caption", "error", lastErr)
	title := caption
	if title == "" {
		title = "Task from photo"
	}
	return &ops.Request{Intent: ops.IntentCreate, Title: title}
}

func (c *Client) parseOnce(ctx context.Context, chat *chatRequest) (*ops.Request, error) {
	payload, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("model returned no tool call")
	}

	var args operationArgs
	raw := completion.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to decode tool arguments: %w", err)
	}

	return args.toRequest()
}

func (c *Client) chatRequest(text string, now time.Time) *chatRequest {
	system := fmt.Sprintf(
		"You translate a user's to-do message into exactly one %s call. "+
			"Resolve relative dates against the current time %s. "+
			"Use intent update/complete/delete with a reference when the user points at an existing task; "+
			"use decompose with subtasks when the user asks to break work down.",
		toolName, now.Format(time.RFC3339))

	return &chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        toolName,
				Description: "Submit the structured to-do operation extracted from the message",
				Parameters:  json.RawMessage(operationSchema),
			},
		}},
		ToolChoice: toolChoice{
			Type:     "function",
			Function: toolChoiceFunction{Name: toolName},
		},
	}
}

// imageChatRequest builds a completion request whose user message carries
// the photo as an image content part, plus the caption as a text part when
// the user wrote one.
func (c *Client) imageChatRequest(image []byte, mimeType, caption string, now time.Time) *chatRequest {
	system := fmt.Sprintf(
		"You translate a photo the user sent into exactly one %s call: read the text "+
			"and scene in the image and extract the to-do operation it implies. "+
			"Resolve relative dates against the current time %s. "+
			"When the photo shows several distinct tasks, use decompose with subtasks.",
		toolName, now.Format(time.RFC3339))

	var parts []contentPart
	if caption != "" {
		parts = append(parts, contentPart{Type: "text", Text: "Photo caption: " + caption})
	}
	parts = append(parts, contentPart{
		Type: "image_url",
		ImageURL: &imageURL{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
		},
	})

	return &chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: parts},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        toolName,
				Description: "Submit the structured to-do operation extracted from the photo",
				Parameters:  json.RawMessage(operationSchema),
			},
		}},
		ToolChoice: toolChoice{
			Type:     "function",
			Function: toolChoiceFunction{Name: toolName},
		},
	}
}

// operationSchema is the JSON schema of the tool arguments. It mirrors the
// ops.Request shape with ISO 8601 strings for timestamps.
const operationSchema = `{
	"type": "object",
	"properties": {
		"intent": {"type": "string", "enum": ["create", "update", "complete", "delete", "search", "list", "decompose"]},
		"title": {"type": "string"},
		"reference": {"type": "string"},
		"due": {"type": "string", "description": "ISO 8601 timestamp"},
		"fields": {
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"due": {"type": "string"},
				"body": {"type": "string"},
				"importance": {"type": "string", "enum": ["low", "normal", "high"]}
			}
		},
		"query": {"type": "string"},
		"filter": {"type": "string", "enum": ["all", "active"]},
		"subtasks": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["intent"]
}`

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice toolChoice    `json:"tool_choice"`
}

// chatMessage carries either a plain string or a []contentPart as content;
// the wire format accepts both.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolChoice struct {
	Type     string             `json:"type"`
	Function toolChoiceFunction `json:"function"`
}

type toolChoiceFunction struct {
	Name string `json:"name"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// operationArgs is the tool-call payload before timestamp parsing.
type operationArgs struct {
	Intent    string     `json:"intent"`
	Title     string     `json:"title"`
	Reference string     `json:"reference"`
	Due       string     `json:"due"`
	Fields    *fieldArgs `json:"fields"`
	Query     string     `json:"query"`
	Filter    string     `json:"filter"`
	Subtasks  []string   `json:"subtasks"`
}

type fieldArgs struct {
	Title      *string `json:"title"`
	Due        string  `json:"due"`
	Body       *string `json:"body"`
	Importance *string `json:"importance"`
}

func (a *operationArgs) toRequest() (*ops.Request, error) {
	if a.Intent == "" {
		return nil, fmt.Errorf("tool arguments carry no intent")
	}

	request := &ops.Request{
		Intent:    ops.Intent(a.Intent),
		Title:     a.Title,
		Reference: a.Reference,
		Query:     a.Query,
		Filter:    a.Filter,
		Subtasks:  a.Subtasks,
	}

	if a.Due != "" {
		due, err := parseTimestamp(a.Due)
		if err != nil {
			return nil, err
		}
		request.Due = &due
	}

	if a.Fields != nil {
		request.Fields = &ops.Fields{
			Title:      a.Fields.Title,
			Body:       a.Fields.Body,
			Importance: a.Fields.Importance,
		}
		if a.Fields.Due != "" {
			due, err := parseTimestamp(a.Fields.Due)
			if err != nil {
				return nil, err
			}
			request.Fields.Due = &due
		}
	}

	return request, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
