package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"compliance-agent/internal/classifier"
	"compliance-agent/internal/llm"
	"compliance-agent/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "gemini:\n  api_key: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.ModelName)
	assert.Equal(t, 3, cfg.MaxFailuresBeforeSwitch)
	assert.Equal(t, repository.DriverSQLite, cfg.Database.Type)
	assert.Equal(t, "./data/bank_data.db", cfg.Database.Path)
	assert.Equal(t, classifier.KindFile, cfg.Classifier.Type)
	assert.Equal(t, "./model_store/model.json", cfg.Classifier.Path)
	assert.Equal(t, classifier.DefaultFeatures, cfg.Features)
	require.NotNil(t, cfg.Log.Development)
	assert.True(t, *cfg.Log.Development)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "groq-secret")
	t.Setenv("TEST_DB_URL", "postgres://u:p@localhost/bank?sslmode=disable")

	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - type: groq
    api_key: ${TEST_GROQ_KEY}
    retry_delay: 1500ms
database:
  type: postgres
  path: ${TEST_DB_URL}
log:
  development: false
  level: info
features: [val, source_transactions]
`))
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "groq-secret", cfg.Providers[0].APIKey)
	assert.Equal(t, 1500*time.Millisecond, cfg.Providers[0].RetryDelay)
	assert.Equal(t, repository.DriverPostgres, cfg.Database.Type)
	assert.Equal(t, "postgres://u:p@localhost/bank?sslmode=disable", cfg.Database.Path)
	assert.False(t, *cfg.Log.Development)
	assert.Equal(t, []string{"val", "source_transactions"}, cfg.Features)

	providers := cfg.TranslatorProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, llm.ProviderGroq, providers[0].Type)
}

func TestTranslatorProvidersFallsBackToGemini(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "gemini:\n  api_key: abc\n  model_name: gemini-1.5-pro\n"))
	require.NoError(t, err)

	providers := cfg.TranslatorProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, llm.ProviderGemini, providers[0].Type)
	assert.Equal(t, "abc", providers[0].APIKey)
	assert.Equal(t, "gemini-1.5-pro", providers[0].ModelName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"no key", "server:\n  port: \"9000\"\n", true},
		{"placeholder key", "gemini:\n  api_key: YOUR_API_KEY_HERE\n", true},
		{"unset env key", "gemini:\n  api_key: ${TEST_UNSET_COMPLIANCE_KEY}\n", true},
		{"one provider keyed", "providers:\n  - type: groq\n  - type: openrouter\n    api_key: k\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			require.NoError(t, err)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}
