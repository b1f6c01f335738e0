package ml

import (
	"encoding/json"
	"fmt"
)

// ModelArtifactPath is where the serialized model lives under a run's
// artifact root.
const ModelArtifactPath = "model/model.json"

type artifact struct {
	Kind     string          `json:"kind"`
	Features []string        `json:"features,omitempty"`
	Model    json.RawMessage `json:"model"`
}

// Save serializes a fitted model plus its feature names into the JSON
// artifact format logged to the tracking server.
func Save(m Model, features []string) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s model: %w", m.Kind(), err)
	}

	return json.MarshalIndent(artifact{
		Kind:     m.Kind(),
		Features: features,
		Model:    payload,
	}, "", "  ")
}

// Load restores a model and its feature names from artifact bytes.
func Load(data []byte) (Model, []string, error) {
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}

	var model Model
	switch art.Kind {
	case KindDecisionTree:
		model = &DecisionTreeClassifier{}
	case KindRandomForest:
		model = &RandomForestClassifier{}
	case KindLogisticRegression:
		model = &LogisticRegression{}
	default:
		return nil, nil, fmt.Errorf("unknown model kind in artifact: %s", art.Kind)
	}

	if err := json.Unmarshal(art.Model, model); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s model: %w", art.Kind, err)
	}

	return model, art.Features, nil
}
