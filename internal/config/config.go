package config

import (
	"fmt"
	"os"
	"time"

	"compliance-agent/internal/classifier"
	"compliance-agent/internal/llm"
	"compliance-agent/internal/repository"

	"gopkg.in/yaml.v3"
)

const placeholderKey = "YOUR_API_KEY_HERE"

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Multiple providers configuration
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Single provider config, used when providers is empty
	Gemini struct {
		APIKey            string `yaml:"api_key"`
		ModelName         string `yaml:"model_name"`
		MaxRetries        int    `yaml:"max_retries"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"gemini"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`

	Database struct {
		Path string            `yaml:"path"` // SQLite path or PostgreSQL URL
		Type repository.Driver `yaml:"type"` // "sqlite" or "postgres"
	} `yaml:"database"`

	Classifier classifier.Config `yaml:"classifier"`

	// Expected classifier input columns, in order
	Features []string `yaml:"features"`

	Log struct {
		Development *bool  `yaml:"development"`
		Level       string `yaml:"level"`
	} `yaml:"log"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.setDefaults()

	// Expand environment variables in secrets and DSNs
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Classifier.Path = os.ExpandEnv(config.Classifier.Path)
	config.Classifier.URL = os.ExpandEnv(config.Classifier.URL)

	return config, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}

	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash"
	}

	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}

	if c.Gemini.RequestsPerMinute == 0 {
		c.Gemini.RequestsPerMinute = 8
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	if c.Database.Type == "" {
		c.Database.Type = repository.DriverSQLite
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/bank_data.db"
	}

	if c.Classifier.Type == "" {
		c.Classifier.Type = classifier.KindFile
	}

	if c.Classifier.Path == "" {
		c.Classifier.Path = "./model_store/model.json"
	}

	if len(c.Features) == 0 {
		c.Features = append([]string(nil), classifier.DefaultFeatures...)
	}

	if c.Log.Development == nil {
		dev := true
		c.Log.Development = &dev
	}

	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
}

// TranslatorProviders returns the configured providers, falling back to
// the single gemini block when the list is empty
func (c *Config) TranslatorProviders() []llm.ProviderConfig {
	if len(c.Providers) > 0 {
		return c.Providers
	}
	return []llm.ProviderConfig{{
		Type:              llm.ProviderGemini,
		APIKey:            c.Gemini.APIKey,
		ModelName:         c.Gemini.ModelName,
		MaxRetries:        c.Gemini.MaxRetries,
		RetryDelay:        2 * time.Second,
		RequestsPerMinute: c.Gemini.RequestsPerMinute,
	}}
}

// Validate checks that at least one translator can authenticate
func (c *Config) Validate() error {
	for _, p := range c.TranslatorProviders() {
		if p.APIKey != "" && p.APIKey != placeholderKey {
			return nil
		}
	}
	return fmt.Errorf("translator API key not configured: set gemini.api_key or providers[].api_key in the config file or environment")
}
