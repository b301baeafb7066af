package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"sansfit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Database DatabaseConfig
	Data     DataConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// AIConfig holds the chat-completion provider settings. The Anthropic key
// drives the tool-calling assistant; the OpenAI key serves the plain-chat
// fallback. Either may also be supplied per-session from the UI.
type AIConfig struct {
	AnthropicKey string
	OpenAIKey    string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
}

// DatabaseConfig holds the optional Postgres connection used for chat
// transcript persistence. Empty URL disables persistence entirely.
type DatabaseConfig struct {
	URL string
}

// DataConfig holds data-loading settings
type DataConfig struct {
	ExampleFile string
	MaxPoints   int
}

// Load builds configuration from the environment, reading a .env file first
// when present.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		AI: AIConfig{
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:        getEnv("AI_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:    getEnvInt("AI_MAX_TOKENS", 4096),
			Timeout:      time.Duration(getEnvInt("AI_TIMEOUT_MS", 180000)) * time.Millisecond,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Data: DataConfig{
			ExampleFile: getEnv("EXAMPLE_DATA_FILE", "testdata/example_sans_data.csv"),
			MaxPoints:   getEnvInt("MAX_DATA_POINTS", 100000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.ConfigInvalid("server port must not be empty")
	}
	if c.AI.MaxTokens <= 0 {
		return errors.ConfigInvalid("AI_MAX_TOKENS must be positive")
	}
	if c.AI.Timeout <= 0 {
		return errors.ConfigInvalid("AI_TIMEOUT_MS must be positive")
	}
	if c.Data.MaxPoints <= 0 {
		return errors.ConfigInvalid("MAX_DATA_POINTS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
