package training

import (
	"fmt"
	"strings"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
)

// DatasetRecipe pairs a preprocessing function with the model the dataset is
// trained with by default.
type DatasetRecipe struct {
	Name      string
	ModelKind string

	// Preprocess turns the raw frame into a feature frame plus integer
	// class labels.
	Preprocess func(frame *dataset.Frame) (*dataset.Frame, []float64, error)
}

var recipes = map[string]DatasetRecipe{
	"iris": {
		Name:       "iris",
		ModelKind:  ml.KindDecisionTree,
		Preprocess: preprocessIris,
	},
	"titanic": {
		Name:       "titanic",
		ModelKind:  ml.KindLogisticRegression,
		Preprocess: preprocessTitanic,
	},
	"hotel": {
		Name:       "hotel",
		ModelKind:  ml.KindRandomForest,
		Preprocess: preprocessHotel,
	},
}

// Recipe looks up a dataset recipe by name.
func Recipe(name string) (DatasetRecipe, error) {
	recipe, ok := recipes[name]
	if !ok {
		return DatasetRecipe{}, fmt.Errorf("unknown dataset: %s (valid: %s)", name, strings.Join(RecipeNames(), ", "))
	}
	return recipe, nil
}

// RecipeNames lists the known datasets.
func RecipeNames() []string {
	return []string{"iris", "titanic", "hotel"}
}

// preprocessIris finds the species column, label-encodes it, and uses the
// remaining columns as features.
func preprocessIris(frame *dataset.Frame) (*dataset.Frame, []float64, error) {
	target := ""
	for _, candidate := range []string{"species", "target", "variety"} {
		if frame.ColumnIndex(candidate) >= 0 {
			target = candidate
			break
		}
	}
	if target == "" {
		// Fall back to the last column, the common layout for iris CSVs.
		target = frame.Columns[len(frame.Columns)-1]
	}

	if _, err := frame.LabelEncode(target); err != nil {
		return nil, nil, err
	}

	return frame.Target(target)
}

// preprocessTitanic drops the identifier columns, imputes Age and Embarked,
// and encodes the categorical features.
func preprocessTitanic(frame *dataset.Frame) (*dataset.Frame, []float64, error) {
	frame = frame.Drop("PassengerId", "Name", "Ticket", "Cabin")

	if frame.ColumnIndex("Age") >= 0 {
		if err := frame.ImputeMedian("Age"); err != nil {
			return nil, nil, err
		}
	}
	if frame.ColumnIndex("Embarked") >= 0 {
		if err := frame.ImputeMode("Embarked"); err != nil {
			return nil, nil, err
		}
	}

	for _, column := range []string{"Sex", "Embarked"} {
		if frame.ColumnIndex(column) >= 0 {
			if _, err := frame.LabelEncode(column); err != nil {
				return nil, nil, err
			}
		}
	}

	return frame.Target("Survived")
}

// preprocessHotel predicts booking cancellation from numeric columns only.
func preprocessHotel(frame *dataset.Frame) (*dataset.Frame, []float64, error) {
	return frame.Target("is_canceled")
}
