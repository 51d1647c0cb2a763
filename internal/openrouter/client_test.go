package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"compliance-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTranslate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "Compliance Agent", r.Header.Get("X-Title"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"REASON: ok\nSQL: SELECT * FROM unified_transactions;"},"finish_reason":"stop"}]}`))
	})

	out, err := c.Translate(context.Background(), models.Document{Name: "policy.txt", Content: []byte("policy")})
	require.NoError(t, err)
	assert.Contains(t, out, "SQL: SELECT")
}

func TestTranslateEmbeddedError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded: free-models-per-day","code":429}}`))
	})

	_, err := c.Translate(context.Background(), models.Document{Name: "policy.txt", Content: []byte("policy")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit exceeded")
	assert.Contains(t, err.Error(), "429")
}

func TestTranslateStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Provider returned error","code":429}}`))
	})

	_, err := c.Translate(context.Background(), models.Document{Name: "policy.txt", Content: []byte("policy")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTranslateNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Translate(context.Background(), models.Document{Name: "policy.txt", Content: []byte("policy")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestTranslateRejectsPDF(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Translate(context.Background(), models.Document{Name: "policy.pdf", Content: []byte("%PDF-1.4")})
	assert.True(t, errors.Is(err, models.ErrUnsupportedDocument))
	assert.False(t, called)
}

func TestGetModelInfo(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", BaseURL: "https://example.test/api/v1/"}, zap.NewNop())
	require.NoError(t, err)

	info := c.GetModelInfo()
	assert.Equal(t, "openrouter", info["provider"])
	assert.Equal(t, "https://example.test/api/v1", info["base_url"])
}
