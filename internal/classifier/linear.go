package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ModelKind is the family of a linear model artifact
type ModelKind string

const (
	LogisticRegression ModelKind = "logistic_regression"
	LinearSVM          ModelKind = "linear_svm"
)

// LinearModel is a binary linear classifier exported from the training
// pipeline as JSON. It is read once and never modified.
type LinearModel struct {
	Kind         ModelKind `json:"kind"`
	Version      string    `json:"version,omitempty"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	// Probability cut-off for logistic regression. Default 0.5.
	Threshold float64 `json:"threshold,omitempty"`
}

// LoadLinearModel reads and validates a model artifact
func LoadLinearModel(path string) (*LinearModel, error) {
	if path == "" {
		return nil, fmt.Errorf("model path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}

	if m.Kind == "" {
		m.Kind = LogisticRegression
	}
	if m.Kind != LogisticRegression && m.Kind != LinearSVM {
		return nil, fmt.Errorf("unsupported model kind %q", m.Kind)
	}
	if len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("model has no coefficients")
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != len(m.Coefficients) {
		return nil, fmt.Errorf("model lists %d feature names for %d coefficients",
			len(m.FeatureNames), len(m.Coefficients))
	}
	if m.Threshold == 0 {
		m.Threshold = 0.5
	}

	return &m, nil
}

// Predict returns 1 or 0 per row
func (m *LinearModel) Predict(_ context.Context, x Matrix) ([]float64, error) {
	if len(x.Columns) != len(m.Coefficients) {
		return nil, fmt.Errorf("%w: model expects %d features, got %d",
			ErrFeatureMismatch, len(m.Coefficients), len(x.Columns))
	}
	if len(m.FeatureNames) > 0 {
		for i, name := range m.FeatureNames {
			if x.Columns[i] != name {
				return nil, fmt.Errorf("%w: feature %d is %q, model expects %q",
					ErrFeatureMismatch, i, x.Columns[i], name)
			}
		}
	}

	out := make([]float64, len(x.Rows))
	for i, row := range x.Rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d",
				ErrFeatureMismatch, i, len(row), len(m.Coefficients))
		}
		if m.decide(m.score(row)) {
			out[i] = 1
		}
	}
	return out, nil
}

func (m *LinearModel) score(row []float64) float64 {
	z := m.Intercept
	for j, w := range m.Coefficients {
		z += w * row[j]
	}
	return z
}

func (m *LinearModel) decide(z float64) bool {
	if m.Kind == LinearSVM {
		return z >= 0
	}
	return 1/(1+math.Exp(-z)) >= m.Threshold
}

// GetModelInfo returns model information
func (m *LinearModel) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"source":        "file",
		"kind":          string(m.Kind),
		"version":       m.Version,
		"feature_count": len(m.Coefficients),
		"feature_names": m.FeatureNames,
		"threshold":     m.Threshold,
	}
}
