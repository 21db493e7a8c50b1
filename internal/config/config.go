package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"

	defaultDatabasePath      = "data/pantry-planner.db"
	defaultRequestsPerMinute = 15
	defaultMaxOutputTokens   = 8192
	defaultPort              = "8080"
)

// Config holds the configuration for the application.
type Config struct {
	LLMProvider   string
	GeminiAPIKey  string
	GroqAPIKey    string
	PlanningModel string
	ChatModel     string

	DatabasePath string

	// LLMRequestsPerMinute throttles provider calls. Zero disables throttling.
	LLMRequestsPerMinute int
	LLMMaxOutputTokens   int32

	LogLevel string

	// Telegram front end for the chat assistant.
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
	Port                   string
}

// NewFromEnv creates a new Config object from environment variables. Provider
// credentials are checked separately by ValidateLLM so commands that never call a
// model can run without them.
func NewFromEnv() (*Config, error) {
	provider := strings.ToLower(os.Getenv("LLM_PROVIDER"))
	if provider == "" {
		provider = ProviderGemini
	}

	cfg := &Config{
		LLMProvider:   provider,
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:    os.Getenv("GROQ_API_KEY"),
		PlanningModel: os.Getenv("PLANNING_MODEL"),
		ChatModel:     os.Getenv("CHAT_MODEL"),
		DatabasePath:  os.Getenv("DATABASE_PATH"),
		LogLevel:      os.Getenv("LOG_LEVEL"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		Port:               os.Getenv("PORT"),
	}

	if provider != ProviderGemini && provider != ProviderGroq {
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q (expected %q or %q)", provider, ProviderGemini, ProviderGroq)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = defaultDatabasePath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	rpm, err := intFromEnv("LLM_REQUESTS_PER_MINUTE", defaultRequestsPerMinute)
	if err != nil {
		return nil, err
	}
	if rpm < 0 {
		return nil, fmt.Errorf("LLM_REQUESTS_PER_MINUTE must not be negative")
	}
	cfg.LLMRequestsPerMinute = rpm

	maxTokens, err := intFromEnv("LLM_MAX_OUTPUT_TOKENS", defaultMaxOutputTokens)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("LLM_MAX_OUTPUT_TOKENS must be positive")
	}
	cfg.LLMMaxOutputTokens = int32(maxTokens)

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if raw := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
			}
			cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
		}
	}
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.AdminTelegramID = id
	}

	return cfg, nil
}

// ValidateLLM checks that the selected provider has an API key.
func (c *Config) ValidateLLM() error {
	switch c.LLMProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	}
	return nil
}

// ValidateTelegram checks the settings the Telegram front end needs.
func (c *Config) ValidateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS environment variable not set")
	}
	return nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
