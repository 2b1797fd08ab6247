package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Todoist  TodoistConfig  `toml:"todoist"`
	Webhook  WebhookConfig  `toml:"webhook"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// TodoistConfig contains the task service credential, target project, and client tuning.
//
// The OAuth client fields are only needed by the authorization command; the server
// authenticates with APIToken alone.
type TodoistConfig struct {
	APIToken       string  `toml:"api_token"`
	ProjectID      string  `toml:"project_id"`
	BaseURL        string  `toml:"base_url"`
	SyncURL        string  `toml:"sync_url"`
	DueString      string  `toml:"due_string"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
	ClientID       string  `toml:"client_id"`
	ClientSecret   string  `toml:"client_secret"`
	RedirectURI    string  `toml:"redirect_uri"`
}

// Timeout returns the per-request timeout for task service calls.
func (c TodoistConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WebhookConfig controls how inbound playback notifications are interpreted.
type WebhookConfig struct {
	CompletionThresholdSeconds int `toml:"completion_threshold_seconds"`
}

// CompletionThreshold is the largest gap between runtime and stop position that still counts as finished.
func (c WebhookConfig) CompletionThreshold() time.Duration {
	if c.CompletionThresholdSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.CompletionThresholdSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
//
// An empty Path disables the item mapping store.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration back to path as TOML.
//
// The file holds a credential so it is written owner-readable only.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate checks the settings the webhook server cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Todoist.APIToken) == "" {
		return fmt.Errorf("%w: todoist.api_token (or TODOIST_API_KEY) is not set", ErrMissingCredentials)
	}
	if strings.TrimSpace(c.Todoist.ProjectID) == "" {
		return fmt.Errorf("%w: todoist.project_id (or TODOIST_PROJECT_ID) is not set", ErrMissingConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Todoist.RateLimit < 0 {
		return fmt.Errorf("%w: todoist.rate_limit must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
