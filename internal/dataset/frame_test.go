package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/mlflow-dashboard/internal/models"
)

func TestParseCSV(t *testing.T) {
	t.Run("infers column types", func(t *testing.T) {
		frame, err := ParseCSV(strings.NewReader(
			"age,height,married,city\n" +
				"30,1.80,true,Tokyo\n" +
				"25,1.65,false,Osaka\n"))
		require.NoError(t, err)

		assert.Equal(t, []string{"age", "height", "married", "city"}, frame.Columns)
		assert.Equal(t, []models.DType{
			models.DTypeInt,
			models.DTypeFloat,
			models.DTypeBool,
			models.DTypeString,
		}, frame.DTypes)
		assert.Equal(t, 2, frame.NumRows())
	})

	t.Run("missing values do not affect inference", func(t *testing.T) {
		frame, err := ParseCSV(strings.NewReader("a,b\n1,NA\n2,3.5\nNaN,null\n"))
		require.NoError(t, err)

		assert.Equal(t, models.DTypeInt, frame.DTypes[0])
		assert.Equal(t, models.DTypeFloat, frame.DTypes[1])
		assert.Equal(t, map[string]int{"a": 1, "b": 2}, frame.MissingCounts())
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty CSV data")
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("a,b\n1,2\n3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid CSV")
	})

	t.Run("header only", func(t *testing.T) {
		frame, err := ParseCSV(strings.NewReader("a,b\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, frame.NumRows())
		assert.Equal(t, models.DTypeString, frame.DTypes[0])
	})
}

func TestFrameSummary(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader(
		"x,label\n1,a\n2,b\n3,a\n4,b\n5,a\n6,b\n7,a\n"))
	require.NoError(t, err)

	summary := frame.Summary("data.csv")

	assert.Equal(t, "data.csv", summary.Filename)
	assert.Equal(t, [2]int{7, 2}, summary.Shape)
	assert.Equal(t, []string{"x", "label"}, summary.Columns)
	assert.Equal(t, map[string]string{"x": "int64", "label": "object"}, summary.DTypes)
	assert.Len(t, summary.Preview, 5)
	assert.Equal(t, int64(1), summary.Preview[0]["x"])
	assert.Equal(t, "a", summary.Preview[0]["label"])
	assert.Equal(t, map[string]int{"x": 0, "label": 0}, summary.MissingValues)
}

func TestFrameDrop(t *testing.T) {
	frame, err := ParseCSV(strings.NewReader("a,b,c\n1,2,3\n4,5,6\n"))
	require.NoError(t, err)

	out := frame.Drop("b", "missing")

	assert.Equal(t, []string{"a", "c"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "3"}, {"4", "6"}}, out.Cells)
	// original untouched
	assert.Equal(t, []string{"a", "b", "c"}, frame.Columns)
}

func TestNumericMatrix(t *testing.T) {
	t.Run("keeps numeric columns and imputes medians", func(t *testing.T) {
		frame, err := ParseCSV(strings.NewReader(
			"x,name,y\n1,a,10\n2,b,NA\n3,c,30\n"))
		require.NoError(t, err)

		X, names, err := frame.NumericMatrix()
		require.NoError(t, err)

		assert.Equal(t, []string{"x", "y"}, names)
		rows, cols := X.Dims()
		assert.Equal(t, 3, rows)
		assert.Equal(t, 2, cols)
		// median of {10, 30} fills the missing cell
		assert.Equal(t, 20.0, X.At(1, 1))
	})

	t.Run("no numeric columns", func(t *testing.T) {
		frame, err := ParseCSV(strings.NewReader("name\na\nb\n"))
		require.NoError(t, err)

		_, _, err = frame.NumericMatrix()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no numeric feature columns")
	})

	t.Run("no rows", func(t *testing.T) {
		frame := &Frame{
			Columns: []string{"x"},
			DTypes:  []models.DType{models.DTypeFloat},
		}
		_, _, err := frame.NumericMatrix()
		require.Error(t, err)
	})
}

func TestIsMissing(t *testing.T) {
	for _, value := range []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"} {
		assert.True(t, IsMissing(value), value)
	}
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing("na"))
}
