package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/redis/go-redis/v9"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key (required for all model operations)
	if os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required",
			ErrMissingAPIKey)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.TokenBudget < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenBudget, c.TokenBudget)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 600 {
		return fmt.Errorf("%w: must be between 1 and 600 seconds, got %d",
			ErrInvalidTimeout, c.RequestTimeout)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Redis configuration
	if c.RedisURL == "" {
		return fmt.Errorf("%w: redis_url cannot be empty", ErrInvalidRedisURL)
	}
	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRedisURL, err)
	}

	// Server configuration
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr cannot be empty", ErrInvalidListenAddr)
	}

	return nil
}
