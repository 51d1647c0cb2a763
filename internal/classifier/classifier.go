// Package classifier loads the pre-trained risk model and aligns audit rows
// onto its fixed input schema.
package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Classifier predicts one numeric label per matrix row
type Classifier interface {
	Predict(ctx context.Context, m Matrix) ([]float64, error)
	GetModelInfo() map[string]interface{}
}

// Kind selects where the model artifact lives
type Kind string

const (
	KindFile   Kind = "file"
	KindRemote Kind = "remote"
)

// Config for loading the classifier
type Config struct {
	Type    Kind          `yaml:"type"`
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load returns the configured classifier, or nil when it is missing or
// broken. A nil classifier puts scoring in offline mode; it never stops startup.
func Load(ctx context.Context, cfg Config, logger *zap.Logger) Classifier {
	switch cfg.Type {
	case KindRemote:
		client := NewRemoteClient(cfg.URL, cfg.Timeout)
		health, err := client.HealthCheck(ctx)
		if err != nil {
			logger.Warn("Risk model service unreachable, scoring offline",
				zap.String("url", cfg.URL),
				zap.Error(err))
			return nil
		}
		if !health.ModelLoaded {
			logger.Warn("Risk model service has no model loaded, scoring offline",
				zap.String("url", cfg.URL),
				zap.String("status", health.Status))
			return nil
		}
		logger.Info("Risk model service connected", zap.String("url", cfg.URL))
		return client

	case KindFile, "":
		model, err := LoadLinearModel(cfg.Path)
		if err != nil {
			logger.Warn("ML model unavailable, scoring offline",
				zap.String("path", cfg.Path),
				zap.Error(err))
			return nil
		}
		logger.Info("ML model loaded",
			zap.String("path", cfg.Path),
			zap.String("kind", string(model.Kind)),
			zap.Int("features", len(model.Coefficients)))
		return model

	default:
		logger.Warn("Unknown classifier type, scoring offline",
			zap.String("type", string(cfg.Type)))
		return nil
	}
}
