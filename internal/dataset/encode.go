package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/models"
)

// LabelEncode replaces the named column's values with integer codes and
// returns the class labels in code order. Missing cells keep code 0.
func (f *Frame) LabelEncode(name string) ([]string, error) {
	col := f.ColumnIndex(name)
	if col < 0 {
		return nil, fmt.Errorf("column not found: %s", name)
	}

	codes := make(map[string]int)
	var classes []string
	for _, row := range f.Cells {
		value := row[col]
		if IsMissing(value) {
			continue
		}
		if _, ok := codes[value]; !ok {
			codes[value] = len(classes)
			classes = append(classes, value)
		}
	}

	for _, row := range f.Cells {
		row[col] = fmt.Sprintf("%d", codes[row[col]])
	}
	f.DTypes[col] = models.DTypeInt

	return classes, nil
}

// ImputeMode fills missing cells in the named column with its most frequent value.
func (f *Frame) ImputeMode(name string) error {
	col := f.ColumnIndex(name)
	if col < 0 {
		return fmt.Errorf("column not found: %s", name)
	}

	counts := make(map[string]int)
	for _, row := range f.Cells {
		if !IsMissing(row[col]) {
			counts[row[col]]++
		}
	}

	mode, best := "", -1
	for value, count := range counts {
		if count > best {
			mode, best = value, count
		}
	}

	for _, row := range f.Cells {
		if IsMissing(row[col]) {
			row[col] = mode
		}
	}

	return nil
}

// ImputeMedian fills missing cells in the named numeric column with its median.
func (f *Frame) ImputeMedian(name string) error {
	col := f.ColumnIndex(name)
	if col < 0 {
		return fmt.Errorf("column not found: %s", name)
	}

	values, med := columnValues(f, col)
	for r, row := range f.Cells {
		if values[r] == nil {
			row[col] = fmt.Sprintf("%g", med)
		}
	}

	return nil
}

// Target extracts the named column as float labels and drops it from the
// returned feature frame.
func (f *Frame) Target(name string) (*Frame, []float64, error) {
	col := f.ColumnIndex(name)
	if col < 0 {
		return nil, nil, fmt.Errorf("target column not found: %s", name)
	}

	values, med := columnValues(f, col)
	y := make([]float64, len(f.Cells))
	for r := range f.Cells {
		if values[r] == nil {
			y[r] = med
		} else {
			y[r] = *values[r]
		}
	}

	return f.Drop(name), y, nil
}

// TrainTestSplit shuffles rows with the given seed and splits the matrix and
// labels, keeping testFrac of the rows for the test set.
func TrainTestSplit(X *mat.Dense, y []float64, testFrac float64, seed int64) (XTrain, XTest *mat.Dense, yTrain, yTest []float64) {
	rows, cols := X.Dims()
	perm := rand.New(rand.NewSource(seed)).Perm(rows)

	testSize := int(float64(rows) * testFrac)
	if testSize < 1 && rows > 1 {
		testSize = 1
	}
	trainSize := rows - testSize

	XTrain = mat.NewDense(trainSize, cols, nil)
	XTest = mat.NewDense(testSize, cols, nil)
	yTrain = make([]float64, trainSize)
	yTest = make([]float64, testSize)

	for i, src := range perm {
		if i < trainSize {
			XTrain.SetRow(i, X.RawRowView(src))
			yTrain[i] = y[src]
		} else {
			XTest.SetRow(i-trainSize, X.RawRowView(src))
			yTest[i-trainSize] = y[src]
		}
	}

	return XTrain, XTest, yTrain, yTest
}
