package container

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"sansfit/adapters/llm"
	"sansfit/adapters/postgres"
	"sansfit/internal"
	"sansfit/internal/chat"
	"sansfit/internal/config"
	"sansfit/internal/session"
	"sansfit/internal/tools"
	"sansfit/ports"
)

// Container holds the application's shared dependencies. Per-session
// collaborators (tool registry, chat service) are built on demand from
// the session's store.
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	Sessions *session.Manager

	// Optional: chat transcript persistence, nil without DATABASE_URL.
	DB       *sqlx.DB
	ChatRepo ports.ChatRepository

	toolClient ports.ToolClient
	chatClient ports.ChatClient
}

// New builds the container from configuration. AI clients are optional:
// with no Anthropic key the assistant runs tool-less, and with no key at
// all the chat endpoints report the feature as unconfigured.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Sessions: session.NewManager(),
	}

	if cfg.AI.AnthropicKey != "" {
		client, err := llm.NewAnthropicClient(cfg.AI.AnthropicKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build anthropic client: %w", err)
		}
		c.toolClient = client
		logger.Info("Anthropic tool client configured (model %s)", cfg.AI.Model)
	}
	if cfg.AI.OpenAIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.AI.OpenAIKey, "", 1000, cfg.AI.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai client: %w", err)
		}
		c.chatClient = client
		logger.Info("OpenAI fallback chat client configured")
	}

	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo, err := postgres.NewChatRepository(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		c.DB = db
		c.ChatRepo = repo
		logger.Info("chat transcript persistence enabled")
	}

	return c, nil
}

// RegistryFor builds the AI tool registry bound to one session.
func (c *Container) RegistryFor(store *session.Store) *tools.Registry {
	return tools.NewRegistry(store, c.Logger)
}

// ChatServiceFor builds the chat service bound to one session. A
// session-scoped API key (entered in the UI) overrides the configured
// Anthropic client for that session.
func (c *Container) ChatServiceFor(store *session.Store) *chat.Service {
	toolClient := c.toolClient
	if key := store.APIKey(); key != "" {
		if client, err := llm.NewAnthropicClient(key, c.Config.AI.Model, c.Config.AI.MaxTokens, c.Config.AI.Timeout); err == nil {
			toolClient = client
		}
	}
	return chat.NewService(store, c.RegistryFor(store), toolClient, c.chatClient, c.Logger)
}

// ChatClient exposes the plain-completion client for model suggestion.
func (c *Container) ChatClient() ports.ChatClient { return c.chatClient }

// HasToolClient reports whether a tool-capable assistant is configured.
func (c *Container) HasToolClient() bool { return c.toolClient != nil }

// Close releases held resources.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
