package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"compliance-agent/internal/gemini"
	"compliance-agent/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	appTitle       = "Compliance Agent"
)

// Client represents an OpenRouter API client.
type Client struct {
	llm        *openai.LLM
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for OpenRouter client.
type Config struct {
	APIKey    string
	ModelName string // e.g., "meta-llama/llama-3.3-70b-instruct:free"
	BaseURL   string
	Timeout   time.Duration
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.3-70b-instruct:free"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ModelName),
		openai.WithBaseURL(baseURL),
		openai.WithHTTPClient(&transport{client: httpClient}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openrouter client: %w", err)
	}

	logger.Info("OpenRouter client initialized",
		zap.String("model", cfg.ModelName))

	return &Client{
		llm:        llm,
		baseURL:    baseURL,
		modelName:  cfg.ModelName,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Translate sends a text policy to OpenRouter. PDFs are not supported.
func (c *Client) Translate(ctx context.Context, doc models.Document) (string, error) {
	if doc.IsPDF() {
		return "", fmt.Errorf("openrouter: %w", models.ErrUnsupportedDocument)
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, gemini.SystemInstruction),
		llms.TextParts(llms.ChatMessageTypeHuman, gemini.BuildPrompt(doc.Text())),
	}, llms.WithTemperature(0.1), llms.WithMaxTokens(1024))
	if err != nil {
		if errors.Is(err, openai.ErrEmptyResponse) {
			return "", fmt.Errorf("no choices in openrouter response")
		}
		c.logger.Error("OpenRouter API error", zap.Error(err))
		return "", fmt.Errorf("openrouter API request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}

	return resp.Choices[0].Content, nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetModelInfo returns information about the model being used.
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":     "openrouter",
		"model":        c.modelName,
		"base_url":     c.baseURL,
		"supports_pdf": false,
	}
}

// transport tags requests with the app title and lifts errors that
// OpenRouter reports inside a 200 body onto the status code.
type transport struct {
	client *http.Client
}

type embeddedError struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (t *transport) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Title", appTitle)

	resp, err := t.client.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var e embeddedError
	if json.Unmarshal(body, &e) == nil && e.Error != nil {
		code := e.Error.Code
		if code < http.StatusBadRequest {
			code = http.StatusBadGateway
		}
		resp.StatusCode = code
		resp.Status = fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return resp, nil
}
