package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is a batch gradient-descent classifier with L2
// regularization. Multiclass problems are handled one-vs-rest.
type LogisticRegression struct {
	LearningRate float64 `json:"learning_rate"`
	Iterations   int     `json:"iterations"`
	L2           float64 `json:"l2"`
	Classes      int     `json:"classes"`

	// Weights is one row per class (a single row for binary problems),
	// with the bias in the last position.
	Weights [][]float64 `json:"weights"`

	// Feature standardization fitted on the training data.
	Means  []float64 `json:"means"`
	Scales []float64 `json:"scales"`
}

func NewLogisticRegression(learningRate float64, iterations int, l2 float64) *LogisticRegression {
	return &LogisticRegression{
		LearningRate: learningRate,
		Iterations:   iterations,
		L2:           l2,
	}
}

func (l *LogisticRegression) Kind() string    { return KindLogisticRegression }
func (l *LogisticRegression) NumClasses() int { return l.Classes }

func (l *LogisticRegression) Fit(X *mat.Dense, y []float64) error {
	rows, _ := X.Dims()
	if rows == 0 {
		return fmt.Errorf("cannot fit on empty matrix")
	}
	if rows != len(y) {
		return fmt.Errorf("label count %d does not match row count %d", len(y), rows)
	}

	l.Classes = classCount(y)
	if l.Classes < 2 {
		return fmt.Errorf("need at least 2 classes in the target, got %d", l.Classes)
	}
	l.fitScaler(X)
	scaled := l.transform(X)

	heads := 1
	if l.Classes > 2 {
		heads = l.Classes
	}

	l.Weights = make([][]float64, heads)
	for h := 0; h < heads; h++ {
		target := make([]float64, rows)
		for i, label := range y {
			switch {
			case heads == 1 && label == 1:
				target[i] = 1
			case heads > 1 && int(label) == h:
				target[i] = 1
			}
		}
		l.Weights[h] = l.fitBinary(scaled, target)
	}

	return nil
}

// fitBinary runs gradient descent for one sigmoid head.
func (l *LogisticRegression) fitBinary(X *mat.Dense, target []float64) []float64 {
	rows, cols := X.Dims()
	weights := make([]float64, cols+1)
	gradient := make([]float64, cols+1)

	for iter := 0; iter < l.Iterations; iter++ {
		for j := range gradient {
			gradient[j] = 0
		}

		for i := 0; i < rows; i++ {
			row := X.RawRowView(i)
			err := sigmoid(dot(weights, row)) - target[i]
			for j, v := range row {
				gradient[j] += err * v
			}
			gradient[cols] += err
		}

		for j := 0; j < cols; j++ {
			gradient[j] = gradient[j]/float64(rows) + l.L2*weights[j]
			weights[j] -= l.LearningRate * gradient[j]
		}
		weights[cols] -= l.LearningRate * gradient[cols] / float64(rows)
	}

	return weights
}

func (l *LogisticRegression) Predict(X *mat.Dense) []float64 {
	proba := l.PredictProba(X)
	rows, _ := proba.Dims()
	predictions := make([]float64, rows)
	for i := 0; i < rows; i++ {
		predictions[i] = float64(argmax(proba.RawRowView(i)))
	}
	return predictions
}

func (l *LogisticRegression) PredictProba(X *mat.Dense) *mat.Dense {
	scaled := l.transform(X)
	rows, _ := scaled.Dims()
	proba := mat.NewDense(rows, l.Classes, nil)

	for i := 0; i < rows; i++ {
		row := scaled.RawRowView(i)
		if len(l.Weights) == 1 {
			p := sigmoid(dot(l.Weights[0], row))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}

		out := proba.RawRowView(i)
		for h, weights := range l.Weights {
			out[h] = sigmoid(dot(weights, row))
		}
		normalize(out)
	}

	return proba
}

func (l *LogisticRegression) fitScaler(X *mat.Dense) {
	rows, cols := X.Dims()
	l.Means = make([]float64, cols)
	l.Scales = make([]float64, cols)

	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(rows)

		variance := 0.0
		for i := 0; i < rows; i++ {
			d := X.At(i, j) - mean
			variance += d * d
		}
		scale := math.Sqrt(variance / float64(rows))
		if scale == 0 {
			scale = 1
		}

		l.Means[j] = mean
		l.Scales[j] = scale
	}
}

func (l *LogisticRegression) transform(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	scaled := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			scaled.Set(i, j, (X.At(i, j)-l.Means[j])/l.Scales[j])
		}
	}
	return scaled
}

// dot applies weights (bias last) to a feature row.
func dot(weights, row []float64) float64 {
	sum := weights[len(weights)-1]
	for j, v := range row {
		sum += weights[j] * v
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
