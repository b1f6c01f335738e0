package training

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
)

func parseFrame(t *testing.T, csv string) *dataset.Frame {
	t.Helper()
	frame, err := dataset.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return frame
}

func TestRecipe(t *testing.T) {
	t.Run("known recipes", func(t *testing.T) {
		for name, kind := range map[string]string{
			"iris":    ml.KindDecisionTree,
			"titanic": ml.KindLogisticRegression,
			"hotel":   ml.KindRandomForest,
		} {
			recipe, err := Recipe(name)
			require.NoError(t, err)
			assert.Equal(t, name, recipe.Name)
			assert.Equal(t, kind, recipe.ModelKind)
		}
	})

	t.Run("unknown recipe", func(t *testing.T) {
		_, err := Recipe("wine")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "iris, titanic, hotel")
	})
}

func TestRecipeNames(t *testing.T) {
	assert.Equal(t, []string{"iris", "titanic", "hotel"}, RecipeNames())
}

func TestPreprocessIris(t *testing.T) {
	t.Run("species column", func(t *testing.T) {
		frame := parseFrame(t,
			"sepal_length,sepal_width,species\n"+
				"5.1,3.5,setosa\n"+
				"7.0,3.2,versicolor\n"+
				"6.3,3.3,virginica\n")

		features, y, err := preprocessIris(frame)
		require.NoError(t, err)

		assert.Equal(t, []string{"sepal_length", "sepal_width"}, features.Columns)
		assert.Equal(t, []float64{0, 1, 2}, y)
	})

	t.Run("falls back to the last column", func(t *testing.T) {
		frame := parseFrame(t, "a,b,class\n1,2,x\n3,4,y\n")

		features, y, err := preprocessIris(frame)
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b"}, features.Columns)
		assert.Equal(t, []float64{0, 1}, y)
	})
}

func TestPreprocessTitanic(t *testing.T) {
	frame := parseFrame(t,
		"PassengerId,Survived,Pclass,Name,Sex,Age,Ticket,Cabin,Embarked\n"+
			"1,0,3,Smith,male,22,A1,,S\n"+
			"2,1,1,Jones,female,,B2,C85,C\n"+
			"3,1,3,Brown,female,26,C3,,S\n"+
			"4,0,3,Green,male,30,D4,,\n")

	features, y, err := preprocessTitanic(frame)
	require.NoError(t, err)

	assert.Equal(t, []string{"Pclass", "Sex", "Age", "Embarked"}, features.Columns)
	assert.Equal(t, []float64{0, 1, 1, 0}, y)

	// Age imputed with the median, Embarked with the mode, then encoded
	age := features.ColumnIndex("Age")
	assert.Equal(t, "26", features.Cells[1][age])
	embarked := features.ColumnIndex("Embarked")
	assert.Equal(t, "0", features.Cells[3][embarked])

	// everything left is numeric
	_, names, err := features.NumericMatrix()
	require.NoError(t, err)
	assert.Equal(t, features.Columns, names)
}

func TestPreprocessHotel(t *testing.T) {
	frame := parseFrame(t, "lead_time,adr,is_canceled\n10,50.5,0\n200,120,1\n")

	features, y, err := preprocessHotel(frame)
	require.NoError(t, err)

	assert.Equal(t, []string{"lead_time", "adr"}, features.Columns)
	assert.Equal(t, []float64{0, 1}, y)

	t.Run("missing target column", func(t *testing.T) {
		_, _, err := preprocessHotel(parseFrame(t, "a,b\n1,2\n"))
		require.Error(t, err)
	})
}

func TestTrainEarlyErrors(t *testing.T) {
	trainer := &Trainer{Logger: zap.NewNop()}

	t.Run("unknown recipe", func(t *testing.T) {
		_, err := trainer.Train(context.Background(), "wine", "nope.csv", "", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown dataset")
	})

	t.Run("missing data file", func(t *testing.T) {
		_, err := trainer.Train(context.Background(), "iris", "/does/not/exist.csv", "", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open dataset")
	})

	t.Run("unknown model kind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "iris.csv")
		csv := "sepal_length,species\n5.1,setosa\n7.0,versicolor\n6.3,setosa\n5.8,versicolor\n"
		require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

		_, err := trainer.Train(context.Background(), "iris", path, "svm", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown model kind")
	})
}
