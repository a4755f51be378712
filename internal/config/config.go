// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ai-chat/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Model: OpenAI model selection, request timeout, context token budget
//   - Storage: PostgreSQL connection (see storage.go)
//   - Cache: Redis connection for the message cache
//   - Server: HTTP listen address and CORS origins
//
// Security: Sensitive data (passwords) are never logged.
// Validation: Range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTokenBudget indicates the context token budget is out of range.
	ErrInvalidTokenBudget = errors.New("invalid token budget")

	// ErrInvalidTimeout indicates the model request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRedisURL indicates the Redis URL is invalid.
	ErrInvalidRedisURL = errors.New("invalid Redis URL")

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// Model configuration
	ModelName      string `mapstructure:"model_name" json:"model_name"`           // OpenAI model identifier (e.g. "gpt-4o-mini")
	OpenAIBaseURL  string `mapstructure:"openai_base_url" json:"openai_base_url"` // optional, for proxies and compatible endpoints
	TokenBudget    int    `mapstructure:"token_budget" json:"token_budget"`       // context window budget in estimated tokens
	RequestTimeout int    `mapstructure:"request_timeout" json:"request_timeout"` // model request timeout in seconds

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Cache configuration
	RedisURL string `mapstructure:"redis_url" json:"redis_url"` // SENSITIVE: may embed credentials, masked in MarshalJSON

	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ai-chat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("model_name", "gpt-4o-mini")
	viper.SetDefault("token_budget", 4000)
	viper.SetDefault("request_timeout", 60)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "aichat")
	viper.SetDefault("postgres_password", "aichat_dev_password")
	viper.SetDefault("postgres_db_name", "aichat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Redis defaults
	viper.SetDefault("redis_url", "redis://localhost:6379/0")

	// Server defaults
	viper.SetDefault("listen_addr", ":3000")
	viper.SetDefault("cors_origins", []string{"http://localhost:3001"})
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: OPENAI_API_KEY is read directly by the OpenAI client, not via Viper.
// Validation checks its presence in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "AICHAT_MODEL_NAME")
	mustBind("openai_base_url", "AICHAT_OPENAI_BASE_URL")
	mustBind("token_budget", "AICHAT_TOKEN_BUDGET")
	mustBind("request_timeout", "AICHAT_REQUEST_TIMEOUT")

	mustBind("redis_url", "REDIS_URL")

	mustBind("listen_addr", "AICHAT_LISTEN_ADDR")
	mustBind("cors_origins", "AICHAT_CORS_ORIGINS")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// For secrets <=8 chars, fully masks to prevent substring matching.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - RedisURL (may carry a password in its userinfo)
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.RedisURL = maskSecret(a.RedisURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
