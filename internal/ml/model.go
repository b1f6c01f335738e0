// Package ml implements the classifiers the dashboard trains and explains:
// a CART decision tree, a bagged random forest, and logistic regression.
// Models fit gonum matrices and serialize to a JSON artifact that is logged
// to the tracking server and loaded back for SHAP computation.
package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model is the common interface over the supported classifiers.
type Model interface {
	// Fit trains the model. y holds non-negative integer class labels.
	Fit(X *mat.Dense, y []float64) error

	// Predict returns the predicted class label per row.
	Predict(X *mat.Dense) []float64

	// PredictProba returns per-row class probabilities (rows x classes).
	PredictProba(X *mat.Dense) *mat.Dense

	// NumClasses reports the number of classes seen during Fit.
	NumClasses() int

	// Kind names the model type in artifacts and run params.
	Kind() string
}

// TreeEnsemble is implemented by tree-based models, which get the exact
// tree explainer instead of the sampling one.
type TreeEnsemble interface {
	Model
	Trees() []*DecisionTreeClassifier
}

// Model kind names as stored in artifacts.
const (
	KindDecisionTree       = "decision_tree"
	KindRandomForest       = "random_forest"
	KindLogisticRegression = "logistic_regression"
)

// NewModel returns an untrained model of the given kind with default
// hyperparameters.
func NewModel(kind string) (Model, error) {
	switch kind {
	case KindDecisionTree:
		return NewDecisionTreeClassifier(10, 2), nil
	case KindRandomForest:
		return NewRandomForestClassifier(100, 10, 2, 42), nil
	case KindLogisticRegression:
		return NewLogisticRegression(0.1, 1000, 0.01), nil
	default:
		return nil, fmt.Errorf("unknown model kind: %s", kind)
	}
}

// classCount returns the number of classes implied by integer labels.
func classCount(y []float64) int {
	max := 0
	for _, label := range y {
		if int(label) > max {
			max = int(label)
		}
	}
	return max + 1
}
