package models

// TrainingResult holds evaluation metrics for a trained model.
type TrainingResult struct {
	RunID           string             `json:"run_id"`
	Model           string             `json:"model"`
	Metrics         map[string]float64 `json:"metrics"`
	ConfusionMatrix [][]int            `json:"confusion_matrix"`
	TrainSamples    int                `json:"train_samples"`
	TestSamples     int                `json:"test_samples"`
}
