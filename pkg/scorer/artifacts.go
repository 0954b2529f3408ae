package scorer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names within the artifacts directory.
const (
	FeatureOrderFile = "feature_order.json"
	ModelFile        = "model.json"
)

// Artifacts holds the model artifacts loaded at startup.
type Artifacts struct {
	// FeatureOrder is the configured order of feature vector components.
	FeatureOrder []string

	// Model is the scorer built from the model artifact.
	Model *LogisticModel
}

// modelArtifact is the on-disk shape of model.json.
type modelArtifact struct {
	Version   string             `json:"version"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
}

// LoadArtifacts reads feature_order.json and model.json from dir and builds
// the scorer. Every failure here is fatal at startup; the decision path
// never sees a partially loaded model.
func LoadArtifacts(dir string) (*Artifacts, error) {
	featureOrder, err := loadFeatureOrder(filepath.Join(dir, FeatureOrderFile))
	if err != nil {
		return nil, err
	}

	model, err := loadModel(filepath.Join(dir, ModelFile), featureOrder)
	if err != nil {
		return nil, err
	}

	return &Artifacts{
		FeatureOrder: featureOrder,
		Model:        model,
	}, nil
}

// loadFeatureOrder reads the JSON list of feature names.
func loadFeatureOrder(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature order %q: %w", path, err)
	}

	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to parse feature order %q: %w", path, err)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("feature order %q is empty", path)
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if seen[name] {
			return nil, fmt.Errorf("feature order %q lists feature %q twice", path, name)
		}
		seen[name] = true
	}

	return order, nil
}

// loadModel reads the model artifact and binds it to the feature order.
func loadModel(path string, featureOrder []string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %q: %w", path, err)
	}

	var art modelArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse model %q: %w", path, err)
	}

	model, err := NewLogisticModel(featureOrder, art.Weights, art.Intercept, art.Version)
	if err != nil {
		return nil, fmt.Errorf("model %q does not match feature order: %w", path, err)
	}

	return model, nil
}
