package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"compliance-agent/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Client wraps the Gemini API client
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	logger    *zap.Logger
	modelName string
}

// Config for Gemini client
type Config struct {
	APIKey    string
	ModelName string // Default: "gemini-2.0-flash"
	// Extra client options, e.g. a custom endpoint in tests
	Options []option.ClientOption
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	ctx := context.Background()
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}

	// Low temperature keeps generated queries stable across identical uploads
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.1),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](1024),
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName))

	return &Client{
		client:    client,
		model:     model,
		logger:    logger,
		modelName: cfg.ModelName,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Translate sends the policy to Gemini and returns the raw response text.
// PDFs go as a document blob, anything else as a prefixed text prompt.
func (c *Client) Translate(ctx context.Context, doc models.Document) (string, error) {
	resp, err := c.model.GenerateContent(ctx, BuildParts(doc)...)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", errors.New("gemini response contains no text")
	}

	c.logger.Debug("Gemini translation received",
		zap.String("document", doc.Name),
		zap.Int("length", sb.Len()))

	return sb.String(), nil
}

// BuildParts converts a document to request parts
func BuildParts(doc models.Document) []genai.Part {
	if doc.IsPDF() {
		return []genai.Part{
			genai.Blob{MIMEType: "application/pdf", Data: doc.Content},
			genai.Text(PDFInstruction),
		}
	}
	return []genai.Part{genai.Text(BuildPrompt(doc.Text()))}
}

// ListModels returns the models available to the configured key
func (c *Client) ListModels(ctx context.Context) ([]*genai.ModelInfo, error) {
	var out []*genai.ModelInfo
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":     "gemini",
		"model":        c.modelName,
		"supports_pdf": true,
	}
}
