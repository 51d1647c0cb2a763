package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"compliance-agent/internal/metrics"
	"compliance-agent/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

type fakeProvider struct {
	mu     sync.Mutex
	name   string
	errs   []error
	text   string
	calls  int
	closed bool
}

func (f *fakeProvider) Translate(ctx context.Context, doc models.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		if len(f.errs) > 1 {
			f.errs = f.errs[1:]
		}
		if err != nil {
			return "", err
		}
	}
	return f.text, nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": f.name, "model": "fake"}
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var textDoc = models.Document{Name: "policy.txt", Content: []byte("No transfers above 50000")}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", errors.New("groq API returned status 429: slow down"), true},
		{"resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"quota word", errors.New("You exceeded your current Quota"), true},
		{"rate limit", errors.New("Rate limit exceeded: free-models-per-day"), true},
		{"googleapi code", fmt.Errorf("gemini API error: %w", &googleapi.Error{Code: 429}), true},
		{"googleapi other code", &googleapi.Error{Code: 500, Message: "internal"}, false},
		{"plain failure", errors.New("connection refused"), false},
		{"openai compatible 429", errors.New("groq API error: API returned unexpected status code: 429: Rate limit reached"), true},
		{"deadline", fmt.Errorf("translator throttle wait: %w", context.DeadlineExceeded), false},
		{"cancelled", fmt.Errorf("gemini API error: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsQuotaError(tt.err))
		})
	}
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Type: "bard", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewMultiProviderClient(t *testing.T) {
	_, err := NewMultiProviderClient(MultiProviderConfig{}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{{Type: ProviderGroq}},
	}, nil, zap.NewNop())
	assert.Error(t, err, "a provider without a key never initializes")

	c, err := NewMultiProviderClient(MultiProviderConfig{
		Providers: []ProviderConfig{
			{Type: ProviderGroq},
			{Type: ProviderOpenRouter, APIKey: "k"},
		},
	}, metrics.New(nil), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openrouter", c.GetModelInfo()["provider"])
	assert.Equal(t, 1, c.GetModelInfo()["total_providers"])
}

func newReliable(p Provider, m *metrics.Metrics) *ReliableProvider {
	return NewReliableProvider(p, ReliabilityConfig{
		Name:              "fake",
		RequestsPerMinute: 6000,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
		Timeout:           time.Second,
	}, m, zap.NewNop())
}

func TestReliableProviderRetries(t *testing.T) {
	p := &fakeProvider{
		name: "fake",
		errs: []error{errors.New("boom"), errors.New("boom"), nil},
		text: "REASON: r\nSQL: SELECT 1;",
	}

	out, err := newReliable(p, nil).Translate(context.Background(), textDoc)
	require.NoError(t, err)
	assert.Equal(t, "REASON: r\nSQL: SELECT 1;", out)
	assert.Equal(t, 3, p.callCount())
}

func TestReliableProviderThrottleWaitIsNotQuota(t *testing.T) {
	p := &fakeProvider{name: "fake", text: "REASON: r\nSQL: SELECT 1;"}
	rp := NewReliableProvider(p, ReliabilityConfig{
		Name:              "fake",
		RequestsPerMinute: 1,
		MaxRetries:        1,
		RetryDelay:        time.Millisecond,
		Timeout:           time.Second,
	}, nil, zap.NewNop())

	_, err := rp.Translate(context.Background(), textDoc)
	require.NoError(t, err)

	// the next slot is a minute away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = rp.Translate(ctx, textDoc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsQuotaError(err))
	assert.NotContains(t, strings.ToLower(err.Error()), "rate limit")
	assert.Equal(t, 1, p.callCount())
}

func TestReliableProviderDoesNotRetryPermanent(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"quota", errors.New("status 429"), IsQuotaError},
		{"unsupported", fmt.Errorf("groq: %w", models.ErrUnsupportedDocument), func(err error) bool {
			return errors.Is(err, models.ErrUnsupportedDocument)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{name: "fake", errs: []error{tt.err}}

			_, err := newReliable(p, nil).Translate(context.Background(), textDoc)
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Equal(t, 1, p.callCount())
		})
	}
}

func TestReliableProviderBreakerOpens(t *testing.T) {
	m := metrics.New(nil)
	p := &fakeProvider{name: "fake", errs: []error{errors.New("down")}}
	rp := newReliable(p, m)

	for i := 0; i < 5; i++ {
		_, err := rp.Translate(context.Background(), textDoc)
		require.Error(t, err)
	}

	calls := p.callCount()
	_, err := rp.Translate(context.Background(), textDoc)
	require.Error(t, err)
	assert.Equal(t, calls, p.callCount(), "open breaker must not reach the provider")
	assert.Equal(t, "open", rp.GetModelInfo()["circuit_breaker"])
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("fake")))
}

func TestReliableProviderQuotaKeepsBreakerClosed(t *testing.T) {
	p := &fakeProvider{name: "fake", errs: []error{errors.New("quota exceeded")}}
	rp := newReliable(p, nil)

	for i := 0; i < 8; i++ {
		_, err := rp.Translate(context.Background(), textDoc)
		require.Error(t, err)
	}
	assert.Equal(t, 8, p.callCount())
	assert.Equal(t, "closed", rp.GetModelInfo()["circuit_breaker"])
}

func TestMultiProviderFallback(t *testing.T) {
	first := &fakeProvider{name: "first", errs: []error{errors.New("status 429: quota")}}
	second := &fakeProvider{name: "second", text: "REASON: ok\nSQL: SELECT 1;"}
	c := newMultiProviderClient([]Provider{first, second}, 3, zap.NewNop())

	out, err := c.Translate(context.Background(), textDoc)
	require.NoError(t, err)
	assert.Equal(t, "REASON: ok\nSQL: SELECT 1;", out)
	assert.Equal(t, "second", c.GetModelInfo()["provider"], "quota switches the current provider")

	_, err = c.Translate(context.Background(), textDoc)
	require.NoError(t, err)
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 2, second.callCount())
}

func TestMultiProviderSkipsUnsupportedDocument(t *testing.T) {
	textOnly := &fakeProvider{name: "groq", errs: []error{models.ErrUnsupportedDocument}}
	pdf := &fakeProvider{name: "gemini", text: "REASON: pdf\nSQL: SELECT 1;"}
	c := newMultiProviderClient([]Provider{textOnly, pdf}, 1, zap.NewNop())

	out, err := c.Translate(context.Background(), models.Document{Name: "p.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Contains(t, out, "pdf")
	assert.Equal(t, "groq", c.GetModelInfo()["provider"], "a skip is not a strike")
	assert.Equal(t, 0, c.GetModelInfo()["failure_count"])
}

func TestMultiProviderAllFail(t *testing.T) {
	a := &fakeProvider{name: "a", errs: []error{errors.New("down")}}
	b := &fakeProvider{name: "b", errs: []error{errors.New("RESOURCE_EXHAUSTED")}}
	c := newMultiProviderClient([]Provider{a, b}, 3, zap.NewNop())

	_, err := c.Translate(context.Background(), textDoc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.True(t, IsQuotaError(err), "the last provider's quota error stays visible")

	require.NoError(t, c.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMultiProviderSwitchesAfterMaxFailures(t *testing.T) {
	a := &fakeProvider{name: "a", errs: []error{errors.New("down")}}
	b := &fakeProvider{name: "b", errs: []error{errors.New("down"), nil}, text: "REASON: b\nSQL: SELECT 1;"}
	c := newMultiProviderClient([]Provider{a, b}, 2, zap.NewNop())

	_, err := c.Translate(context.Background(), textDoc)
	require.Error(t, err)
	assert.Equal(t, "a", c.GetModelInfo()["provider"], "one strike keeps the current provider")

	_, err = c.Translate(context.Background(), textDoc)
	require.NoError(t, err)
	assert.Equal(t, "b", c.GetModelInfo()["provider"])

	info := c.GetProvidersInfo()
	require.Len(t, info, 2)
	assert.Equal(t, false, info[0]["is_current"])
	assert.Equal(t, true, info[1]["is_current"])
}
