package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the device API server configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Security SecurityConfig `json:"security"`
	Graph    GraphConfig    `json:"graph"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StorageConfig selects where the credential record lives.
type StorageConfig struct {
	Backend string `json:"backend"` // "sqlite" or "file"
	Path    string `json:"path"`
}

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// SecurityConfig contains security settings.
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// GraphConfig contains Microsoft identity and Graph API settings. A set
// client secret makes this a work-or-school (confidential client)
// deployment; an empty one means a personal account.
type GraphConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TenantID     string `json:"tenant_id"`
	RedirectURL  string `json:"redirect_url"`
	BaseURL      string `json:"base_url"`
}

// OpenAIConfig contains semantic-analysis API settings.
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	return c.Graph.validate()
}

func (s *StorageConfig) validate() error {
	if s.Backend == "" {
		s.Backend = StorageSQLite
	}
	switch s.Backend {
	case StorageSQLite, StorageFile:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, s.Backend)
	}
	if s.Path == "" {
		return fmt.Errorf("%w: storage path is required", ErrInvalidConfig)
	}
	return nil
}

func (g *GraphConfig) validate() error {
	if g.ClientID == "" {
		return fmt.Errorf("%w: graph.client_id is required", ErrInvalidConfig)
	}
	if g.ClientSecret != "" && g.TenantID == "" {
		// Confidential clients authenticate against an organizational
		// tenant; "organizations" works when no specific one is known.
		g.TenantID = "organizations"
	}
	return nil
}

// Load loads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables.
// This is useful for containerized deployments.
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("TODOHUB_HOST", "0.0.0.0"),
			Port: getEnvInt("TODOHUB_PORT", 8080),
		},
		Storage: StorageConfig{
			Backend: getEnv("TODOHUB_STORAGE_BACKEND", StorageSQLite),
			Path:    getEnv("TODOHUB_STORAGE_PATH", "./todohub.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("TODOHUB_API_KEY", ""),
		},
		Graph: GraphConfig{
			ClientID:     getEnv("TODOHUB_GRAPH_CLIENT_ID", ""),
			ClientSecret: getEnv("TODOHUB_GRAPH_CLIENT_SECRET", ""),
			TenantID:     getEnv("TODOHUB_GRAPH_TENANT_ID", ""),
			RedirectURL:  getEnv("TODOHUB_GRAPH_REDIRECT_URL", ""),
			BaseURL:      getEnv("TODOHUB_GRAPH_BASE_URL", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}

func getEnvInt64List(key string) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		var id int64
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
