package llm

import (
	"context"
	"fmt"
	"time"

	"compliance-agent/internal/metrics"
	"compliance-agent/internal/models"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ReliabilityConfig tunes the wrapper around one provider
type ReliabilityConfig struct {
	Name              string
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
	// Per-attempt deadline
	Timeout time.Duration
}

// ReliableProvider wraps a provider with rate limiting, retries and a circuit breaker
type ReliableProvider struct {
	provider   Provider
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker
	attempts   uint
	retryDelay time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

// NewReliableProvider wraps provider. Zero config values get conservative free-tier defaults.
func NewReliableProvider(provider Provider, cfg ReliabilityConfig, m *metrics.Metrics, logger *zap.Logger) *ReliableProvider {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprint(provider.GetModelInfo()["provider"])
	}
	if m == nil {
		m = metrics.New(nil)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("Translator circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Quota and unsupported documents say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
	})
	m.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return &ReliableProvider{
		provider:   provider,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute),
		cb:         cb,
		attempts:   uint(cfg.MaxRetries),
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

func (p *ReliableProvider) Translate(ctx context.Context, doc models.Document) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// the limiter refuses up front when the next slot is past the deadline
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("translator throttle wait: %w", err)
	}

	result, err := p.cb.Execute(func() (interface{}, error) {
		var (
			text      string
			permanent error
		)

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(p.attempts),
			retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
				if n > 5 {
					n = 5
				}
				return p.retryDelay * time.Duration(1<<n)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			out, callErr := p.provider.Translate(tCtx, doc)
			if callErr != nil && isPermanent(callErr) {
				permanent = callErr
				return nil
			}
			if callErr != nil {
				p.logger.Warn("Translator attempt failed",
					zap.String("document", doc.Name),
					zap.Error(callErr))
				return callErr
			}
			text = out
			return nil
		})
		if permanent != nil {
			return "", permanent
		}
		return text, retryErr
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (p *ReliableProvider) Close() error {
	return p.provider.Close()
}

func (p *ReliableProvider) GetModelInfo() map[string]interface{} {
	info := p.provider.GetModelInfo()
	info["circuit_breaker"] = p.cb.State().String()
	return info
}
