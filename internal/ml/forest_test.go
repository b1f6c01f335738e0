package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRandomForestFit(t *testing.T) {
	X, y := andData()
	forest := NewRandomForestClassifier(25, 5, 2, 42)
	require.NoError(t, forest.Fit(X, y))

	assert.Len(t, forest.Estimators, 25)
	assert.Equal(t, 2, forest.NumClasses())

	// well-separated training data should be mostly recovered by the ensemble
	eval := Evaluate(y, forest.Predict(X), forest.NumClasses())
	assert.GreaterOrEqual(t, eval.Accuracy, 0.75)

	proba := forest.PredictProba(X)
	rows, cols := proba.Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := andData()

	a := NewRandomForestClassifier(10, 5, 2, 7)
	require.NoError(t, a.Fit(X, y))
	b := NewRandomForestClassifier(10, 5, 2, 7)
	require.NoError(t, b.Fit(X, y))

	require.Len(t, b.Estimators, len(a.Estimators))
	for i := range a.Estimators {
		assert.Equal(t, a.Estimators[i].Nodes, b.Estimators[i].Nodes)
	}
	assert.Equal(t, a.Predict(X), b.Predict(X))
}

func TestRandomForestPadsBootstrapClasses(t *testing.T) {
	// class 2 is rare; some bootstrap samples will miss it entirely
	X := mat.NewDense(9, 1, []float64{1, 2, 3, 11, 12, 13, 21, 22, 23})
	y := []float64{0, 0, 0, 1, 1, 1, 2, 2, 2}

	forest := NewRandomForestClassifier(30, 5, 2, 3)
	require.NoError(t, forest.Fit(X, y))

	for _, tree := range forest.Estimators {
		assert.Equal(t, 3, tree.Classes)
		for _, node := range tree.Nodes {
			assert.Len(t, node.Value, 3)
		}
	}
}
