package models

import "time"

// ComputationStatus tracks a SHAP computation through its milestones.
type ComputationStatus string

const (
	StatusQueued       ComputationStatus = "queued"
	StatusInitializing ComputationStatus = "initializing"
	StatusLoadingModel ComputationStatus = "Loading model..."
	StatusPreparing    ComputationStatus = "Preparing data..."
	StatusComputing    ComputationStatus = "Computing SHAP values..."
	StatusImportance   ComputationStatus = "Calculating importance..."
	StatusComplete     ComputationStatus = "Complete"
	StatusError        ComputationStatus = "Error"
)

// Terminal reports whether the status ends the computation.
func (s ComputationStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Progress is the mutable status/percentage pair for one computation,
// polled by clients until completion or error.
type Progress struct {
	Status    ComputationStatus `json:"status"`
	Progress  int               `json:"progress"`
	Error     string            `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
}

// FeatureImportance is one feature's mean absolute SHAP value.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ShapResult holds the finished output of one computation.
type ShapResult struct {
	ShapValues        [][]float64         `json:"shap_values"`
	Features          []string            `json:"features"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
	ModelID           string              `json:"model_id"`
	DatasetShape      [2]int              `json:"dataset_shape"`
	ComputedAt        time.Time           `json:"computed_at"`
}
