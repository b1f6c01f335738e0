package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RandomForestClassifier bags decision trees over bootstrap samples with
// per-split feature subsampling (sqrt of the feature count).
type RandomForestClassifier struct {
	NEstimators     int                       `json:"n_estimators"`
	MaxDepth        int                       `json:"max_depth"`
	MinSamplesSplit int                       `json:"min_samples_split"`
	Seed            int64                     `json:"seed"`
	Classes         int                       `json:"classes"`
	Estimators      []*DecisionTreeClassifier `json:"estimators"`
}

func NewRandomForestClassifier(nEstimators, maxDepth, minSamplesSplit int, seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{
		NEstimators:     nEstimators,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		Seed:            seed,
	}
}

func (f *RandomForestClassifier) Kind() string    { return KindRandomForest }
func (f *RandomForestClassifier) NumClasses() int { return f.Classes }

func (f *RandomForestClassifier) Trees() []*DecisionTreeClassifier {
	return f.Estimators
}

func (f *RandomForestClassifier) Fit(X *mat.Dense, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("cannot fit on empty matrix")
	}
	if rows != len(y) {
		return fmt.Errorf("label count %d does not match row count %d", len(y), rows)
	}

	f.Classes = classCount(y)
	f.Estimators = make([]*DecisionTreeClassifier, 0, f.NEstimators)

	maxFeatures := int(math.Sqrt(float64(cols)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(f.Seed))
	sampleX := mat.NewDense(rows, cols, nil)
	sampleY := make([]float64, rows)

	for e := 0; e < f.NEstimators; e++ {
		for i := 0; i < rows; i++ {
			src := rng.Intn(rows)
			sampleX.SetRow(i, X.RawRowView(src))
			sampleY[i] = y[src]
		}

		tree := NewDecisionTreeClassifier(f.MaxDepth, f.MinSamplesSplit)
		tree.maxFeatures = maxFeatures
		tree.rng = rand.New(rand.NewSource(rng.Int63()))
		if err := tree.Fit(sampleX, sampleY); err != nil {
			return fmt.Errorf("failed to fit tree %d: %w", e, err)
		}

		// Bootstrap samples can miss the rarest class; keep the ensemble's
		// class space consistent.
		tree.Classes = f.Classes
		padNodeValues(tree, f.Classes)

		f.Estimators = append(f.Estimators, tree)
	}

	return nil
}

func padNodeValues(tree *DecisionTreeClassifier, classes int) {
	for i := range tree.Nodes {
		value := tree.Nodes[i].Value
		for len(value) < classes {
			value = append(value, 0)
		}
		tree.Nodes[i].Value = value
	}
}

func (f *RandomForestClassifier) Predict(X *mat.Dense) []float64 {
	proba := f.PredictProba(X)
	rows, _ := proba.Dims()
	predictions := make([]float64, rows)
	for i := 0; i < rows; i++ {
		predictions[i] = float64(argmax(proba.RawRowView(i)))
	}
	return predictions
}

func (f *RandomForestClassifier) PredictProba(X *mat.Dense) *mat.Dense {
	rows, _ := X.Dims()
	proba := mat.NewDense(rows, f.Classes, nil)

	for _, tree := range f.Estimators {
		proba.Add(proba, tree.PredictProba(X))
	}
	proba.Scale(1/float64(len(f.Estimators)), proba)

	return proba
}
