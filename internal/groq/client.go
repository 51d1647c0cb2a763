package groq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"compliance-agent/internal/gemini"
	"compliance-agent/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// Client wraps the Groq OpenAI-compatible chat API
type Client struct {
	llm        *openai.LLM
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config for Groq client
type Config struct {
	APIKey    string
	ModelName string // Default: "llama-3.3-70b-versatile"
	BaseURL   string
	Timeout   time.Duration
}

// NewClient creates a new Groq client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "llama-3.3-70b-versatile"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ModelName),
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("creating groq client: %w", err)
	}

	logger.Info("Groq client initialized",
		zap.String("model", cfg.ModelName))

	return &Client{
		llm:        llm,
		modelName:  cfg.ModelName,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Close closes the Groq client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Translate sends a text policy to Groq. PDFs are not supported.
func (c *Client) Translate(ctx context.Context, doc models.Document) (string, error) {
	if doc.IsPDF() {
		return "", fmt.Errorf("groq: %w", models.ErrUnsupportedDocument)
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, gemini.SystemInstruction),
		llms.TextParts(llms.ChatMessageTypeHuman, gemini.BuildPrompt(doc.Text())),
	}, llms.WithTemperature(0.1))
	if err != nil {
		if errors.Is(err, openai.ErrEmptyResponse) {
			return "", fmt.Errorf("empty response from groq")
		}
		c.logger.Error("Groq API error", zap.Error(err))
		return "", fmt.Errorf("groq API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from groq")
	}

	c.logger.Debug("Groq translation received",
		zap.String("document", doc.Name),
		zap.String("stop_reason", resp.Choices[0].StopReason))

	return resp.Choices[0].Content, nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":     "groq",
		"model":        c.modelName,
		"supports_pdf": false,
	}
}
