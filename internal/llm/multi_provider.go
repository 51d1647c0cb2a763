package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compliance-agent/internal/metrics"
	"compliance-agent/internal/models"

	"go.uber.org/zap"
)

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []Provider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewMultiProviderClient creates a new multi-provider client
func NewMultiProviderClient(cfg MultiProviderConfig, m *metrics.Metrics, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))

	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		reliable := NewReliableProvider(provider, ReliabilityConfig{
			Name:              fmt.Sprintf("%s-%d", providerCfg.Type, i),
			RequestsPerMinute: providerCfg.RequestsPerMinute,
			MaxRetries:        providerCfg.MaxRetries,
			RetryDelay:        providerCfg.RetryDelay,
			Timeout:           providerCfg.Timeout,
		}, m, logger)
		providers = append(providers, reliable)

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProviderClient(providers, cfg.MaxFailures, logger), nil
}

func newMultiProviderClient(providers []Provider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

// getCurrentProvider returns the current provider and its index
func (c *MultiProviderClient) getCurrentProvider() (Provider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchToNextProvider moves off from, unless another request already did
func (c *MultiProviderClient) switchToNextProvider(from int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentIndex != from {
		return
	}
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", from),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure records a failure for a provider
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}

	return false
}

// resetFailureCount resets failure count for a provider
func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Translate tries the current provider and falls through the rest on failure.
// Providers that cannot read the document are skipped without a strike.
func (c *MultiProviderClient) Translate(ctx context.Context, doc models.Document) (string, error) {
	var lastErr error

	_, start := c.getCurrentProvider()
	for attempts := 0; attempts < len(c.providers); attempts++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		providerIndex := (start + attempts) % len(c.providers)
		provider := c.providers[providerIndex]

		c.logger.Debug("Attempting translation",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		text, err := provider.Translate(ctx, doc)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return text, nil
		}

		if errors.Is(err, models.ErrUnsupportedDocument) {
			c.logger.Debug("Provider cannot read document, skipping",
				zap.Int("provider_index", providerIndex),
				zap.String("document", doc.Name))
			if lastErr == nil {
				lastErr = err
			}
			continue
		}

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))
		lastErr = err

		shouldSwitch := c.recordFailure(providerIndex)

		// If reached max failures or rate limit error, switch immediately
		if shouldSwitch || IsQuotaError(err) {
			c.switchToNextProvider(providerIndex)
		}
	}

	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.GetModelInfo()

	c.mu.RLock()
	defer c.mu.RUnlock()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	info["failure_count"] = c.failureCount[index]
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = (i == c.currentIndex)
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
