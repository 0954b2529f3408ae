package scorer

import (
	"context"
	"fmt"
	"math"
)

// LogisticModel is a logistic-regression scorer: sigmoid of the weighted
// feature sum plus intercept. Weights are bound to a feature order at
// construction, so scoring is a plain dot product with no name lookups on
// the hot path.
type LogisticModel struct {
	featureOrder []string
	weights      []float64
	intercept    float64
	version      string
}

// NewLogisticModel builds a model for the given feature order.
// Every feature must have exactly one weight and every weight must
// correspond to a feature; anything else is a configuration error.
func NewLogisticModel(featureOrder []string, weights map[string]float64, intercept float64, version string) (*LogisticModel, error) {
	if len(featureOrder) == 0 {
		return nil, fmt.Errorf("feature order cannot be empty")
	}
	if len(weights) != len(featureOrder) {
		return nil, fmt.Errorf("model has %d weights for %d features", len(weights), len(featureOrder))
	}

	ordered := make([]float64, len(featureOrder))
	for i, name := range featureOrder {
		w, ok := weights[name]
		if !ok {
			return nil, fmt.Errorf("model is missing a weight for feature %q", name)
		}
		ordered[i] = w
	}

	return &LogisticModel{
		featureOrder: append([]string(nil), featureOrder...),
		weights:      ordered,
		intercept:    intercept,
		version:      version,
	}, nil
}

// Score returns sigmoid(w·x + b). The vector length must match the feature
// order the model was built against.
func (m *LogisticModel) Score(ctx context.Context, features []float64) (float64, error) {
	if len(features) != len(m.weights) {
		return 0, fmt.Errorf("feature vector has %d components, model expects %d", len(features), len(m.weights))
	}

	z := m.intercept
	for i, x := range features {
		z += m.weights[i] * x
	}

	return sigmoid(z), nil
}

// Version returns the model version label from the artifact.
func (m *LogisticModel) Version() string {
	return m.version
}

// FeatureOrder returns a copy of the feature order the model is bound to.
func (m *LogisticModel) FeatureOrder() []string {
	return append([]string(nil), m.featureOrder...)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
