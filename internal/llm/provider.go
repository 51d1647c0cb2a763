package llm

import (
	"context"
	"fmt"
	"time"

	"compliance-agent/internal/gemini"
	"compliance-agent/internal/groq"
	"compliance-agent/internal/models"
	"compliance-agent/internal/openrouter"

	"go.uber.org/zap"
)

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type      ProviderType `yaml:"type"`
	APIKey    string       `yaml:"api_key"`
	ModelName string       `yaml:"model_name"`
	// Only used by the OpenAI-compatible providers
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Provider turns a policy document into raw "REASON: / SQL:" text
type Provider interface {
	Translate(ctx context.Context, doc models.Document) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// NewProvider builds the bare client for cfg.Type
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
		}, logger.Named("gemini"))
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
		}, logger.Named("groq"))
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:    cfg.APIKey,
			ModelName: cfg.ModelName,
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.Timeout,
		}, logger.Named("openrouter"))
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
