package classifier

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"compliance-agent/internal/models"
)

const (
	// OneHotPrefix names one-hot encoded event type columns
	OneHotPrefix = models.ColumnEventType + "_"

	// SourceIndicator is set for every row of a result carrying a source column
	SourceIndicator = "source_transactions"
)

// DefaultFeatures is the ordered feature list the bundled risk model was trained with
var DefaultFeatures = []string{
	"val",
	"event_type_CASH_OUT",
	"event_type_DEBIT",
	"event_type_Low Customer Satisfaction",
	"event_type_Low Working Days",
	"event_type_Low Working Days, Low Customer Satisfaction",
	"event_type_Low Working Days, Target Not Met",
	"event_type_Low Working Days, Target Not Met, Low Customer Satisfaction",
	"event_type_No Reason (Compliant)",
	"event_type_PAYMENT",
	"event_type_TRANSFER",
	"event_type_Target Not Met",
	"event_type_Target Not Met, Low Customer Satisfaction",
	"source_transactions",
}

// ErrFeatureMismatch is returned when a matrix does not fit a model's inputs
var ErrFeatureMismatch = errors.New("feature mismatch")

// FeatureSchema is the immutable, ordered list of classifier input columns
type FeatureSchema struct {
	names []string
}

// NewFeatureSchema validates and copies the expected feature list
func NewFeatureSchema(names []string) (*FeatureSchema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("feature list is empty")
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("feature list contains an empty name")
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("duplicate feature %q", n)
		}
		seen[n] = struct{}{}
	}

	return &FeatureSchema{names: append([]string(nil), names...)}, nil
}

// Names returns a copy of the ordered feature names
func (s *FeatureSchema) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of features
func (s *FeatureSchema) Len() int {
	return len(s.names)
}

// FeatureVector holds one value per schema column, in schema order
type FeatureVector []float64

// Vector aligns a result row onto the schema. The row's event type becomes its
// one-hot column, a source column becomes the source indicator, every other
// expected column the row lacks is zero, and columns outside the schema are dropped.
func (s *FeatureSchema) Vector(row map[string]interface{}) (FeatureVector, error) {
	cols := make(map[string]interface{}, len(row)+1)
	for k, v := range row {
		if k == models.ColumnEventType {
			continue
		}
		cols[k] = v
	}

	if et, ok := row[models.ColumnEventType]; ok && et != nil {
		cols[OneHotPrefix+fmt.Sprint(et)] = true
	}

	if _, ok := row[models.ColumnSource]; ok {
		cols[SourceIndicator] = 1
	}

	vec := make(FeatureVector, len(s.names))
	for i, name := range s.names {
		v, ok := cols[name]
		if !ok {
			continue
		}
		f, err := toFeature(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		vec[i] = f
	}

	return vec, nil
}

// Matrix aligns every row; it fails as a whole if any row cannot be encoded
func (s *FeatureSchema) Matrix(rows []map[string]interface{}) (Matrix, error) {
	m := Matrix{Columns: s.Names(), Rows: make([][]float64, 0, len(rows))}
	for i, row := range rows {
		vec, err := s.Vector(row)
		if err != nil {
			return Matrix{}, fmt.Errorf("row %d: %w", i, err)
		}
		m.Rows = append(m.Rows, vec)
	}
	return m, nil
}

// Matrix is the aligned classifier input
type Matrix struct {
	Columns []string    `json:"feature_names"`
	Rows    [][]float64 `json:"rows"`
}

func toFeature(v interface{}) (float64, error) {
	var f float64
	switch x := v.(type) {
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: non-numeric value %q", ErrFeatureMismatch, x)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrFeatureMismatch)
	default:
		return 0, fmt.Errorf("%w: unsupported value type %T", ErrFeatureMismatch, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: value is not finite", ErrFeatureMismatch)
	}
	return f, nil
}
