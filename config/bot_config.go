package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// BotConfig represents the Telegram bot configuration.
type BotConfig struct {
	Server   BotServerConfig   `json:"server"`
	Telegram TelegramBotConfig `json:"telegram"`
	Storage  StorageConfig     `json:"storage"`
	Graph    GraphConfig       `json:"graph"`
	OpenAI   OpenAIConfig      `json:"openai"`
}

// BotServerConfig contains HTTP server settings for the webhook listener.
type BotServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TelegramBotConfig contains Telegram bot settings.
type TelegramBotConfig struct {
	Token         string  `json:"token"`
	AllowedUsers  []int64 `json:"allowed_users"`
	AdminUsers    []int64 `json:"admin_users"`
	WebhookURL    string  `json:"webhook_url"`
	WebhookSecret string  `json:"webhook_secret"`
}

// LoadBotConfig loads bot configuration from a file.
func LoadBotConfig(path string) (*BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg BotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadBotConfigFromEnv loads bot configuration from environment variables.
func LoadBotConfigFromEnv() (*BotConfig, error) {
	cfg := &BotConfig{
		Server: BotServerConfig{
			Host: getEnv("TODOHUB_BOT_HOST", "0.0.0.0"),
			Port: getEnvInt("TODOHUB_BOT_PORT", 8081),
		},
		Telegram: TelegramBotConfig{
			Token:         getEnv("TODOHUB_TELEGRAM_TOKEN", ""),
			AllowedUsers:  getEnvInt64List("TODOHUB_TELEGRAM_ALLOWED_USERS"),
			AdminUsers:    getEnvInt64List("TODOHUB_TELEGRAM_ADMIN_USERS"),
			WebhookURL:    getEnv("TODOHUB_TELEGRAM_WEBHOOK_URL", ""),
			WebhookSecret: getEnv("TODOHUB_TELEGRAM_WEBHOOK_SECRET", ""),
		},
		Storage: StorageConfig{
			Backend: getEnv("TODOHUB_STORAGE_BACKEND", StorageSQLite),
			Path:    getEnv("TODOHUB_STORAGE_PATH", "./todohub.db"),
		},
		Graph: GraphConfig{
			ClientID:     getEnv("TODOHUB_GRAPH_CLIENT_ID", ""),
			ClientSecret: getEnv("TODOHUB_GRAPH_CLIENT_SECRET", ""),
			TenantID:     getEnv("TODOHUB_GRAPH_TENANT_ID", ""),
			RedirectURL:  getEnv("TODOHUB_GRAPH_REDIRECT_URL", ""),
			BaseURL:      getEnv("TODOHUB_GRAPH_BASE_URL", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("TODOHUB_OPENAI_API_KEY", ""),
			Model:   getEnv("TODOHUB_OPENAI_MODEL", ""),
			BaseURL: getEnv("TODOHUB_OPENAI_BASE_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *BotConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrInvalidConfig)
	}

	if len(c.Telegram.AllowedUsers) == 0 {
		return fmt.Errorf("%w: telegram.allowed_users cannot be empty", ErrInvalidConfig)
	}

	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("%w: telegram.webhook_url is required", ErrInvalidConfig)
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if err := c.Graph.validate(); err != nil {
		return err
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: openai.api_key is required", ErrInvalidConfig)
	}

	// Set default host if not specified
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	return nil
}

// IsUserAllowed checks if a user ID is in the whitelist.
func (c *BotConfig) IsUserAllowed(userID int64) bool {
	for _, allowedID := range c.Telegram.AllowedUsers {
		if allowedID == userID {
			return true
		}
	}
	return false
}

// IsAdmin checks if a user ID may run credential management commands.
// With no admin list configured, every allowed user is an admin.
func (c *BotConfig) IsAdmin(userID int64) bool {
	if len(c.Telegram.AdminUsers) == 0 {
		return c.IsUserAllowed(userID)
	}
	for _, adminID := range c.Telegram.AdminUsers {
		if adminID == userID {
			return true
		}
	}
	return false
}
