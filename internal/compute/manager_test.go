package compute

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/models"
	"github.com/imishinist/mlflow-dashboard/internal/shap"
)

type stubLoader struct {
	model    ml.Model
	features []string
	err      error
}

func (l *stubLoader) LoadModel(ctx context.Context, runID string) (ml.Model, []string, error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.model, l.features, nil
}

func fittedTree(t *testing.T) ml.Model {
	t.Helper()
	X := mat.NewDense(6, 2, []float64{
		1, 1,
		2, 2,
		1, 2,
		10, 10,
		11, 11,
		10, 11,
	})
	y := []float64{0, 0, 0, 1, 1, 1}
	tree := ml.NewDecisionTreeClassifier(5, 2)
	require.NoError(t, tree.Fit(X, y))
	return tree
}

func parseFrame(t *testing.T, csv string) *dataset.Frame {
	t.Helper()
	frame, err := dataset.ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return frame
}

func waitTerminal(t *testing.T, m *Manager, id string) models.Progress {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		progress, ok := m.Progress(id)
		require.True(t, ok)
		if progress.Status.Terminal() {
			return progress
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("computation did not finish in time")
	return models.Progress{}
}

func testOptions() shap.Options {
	return shap.Options{BackgroundSamples: 50, KernelSamples: 256, Seed: 42}
}

func TestManagerComplete(t *testing.T) {
	loader := &stubLoader{model: fittedTree(t), features: []string{"a", "b"}}
	manager := NewManager(loader, zap.NewNop(), testOptions())

	frame := parseFrame(t, "b,a\n1,1\n2,2\n10,10\n11,11\n")
	id := manager.Start("run-1", frame)
	require.NotEmpty(t, id)

	progress := waitTerminal(t, manager, id)
	assert.Equal(t, models.StatusComplete, progress.Status)
	assert.Equal(t, 100, progress.Progress)
	assert.Empty(t, progress.Error)
	assert.False(t, progress.StartTime.IsZero())

	result, ok := manager.Result(id)
	require.True(t, ok)
	assert.Equal(t, "run-1", result.ModelID)
	// columns were realigned to the model's training feature order
	assert.Equal(t, []string{"a", "b"}, result.Features)
	assert.Equal(t, [2]int{4, 2}, result.DatasetShape)
	assert.Len(t, result.ShapValues, 4)
	assert.Len(t, result.FeatureImportance, 2)
	for i := 1; i < len(result.FeatureImportance); i++ {
		assert.GreaterOrEqual(t,
			result.FeatureImportance[i-1].Importance,
			result.FeatureImportance[i].Importance)
	}
	assert.False(t, result.ComputedAt.IsZero())
}

func TestManagerLoaderFailure(t *testing.T) {
	loader := &stubLoader{err: fmt.Errorf("artifact gone")}
	manager := NewManager(loader, zap.NewNop(), testOptions())

	id := manager.Start("run-x", parseFrame(t, "a,b\n1,2\n"))

	progress := waitTerminal(t, manager, id)
	assert.Equal(t, models.StatusError, progress.Status)
	assert.Contains(t, progress.Error, "artifact gone")

	_, ok := manager.Result(id)
	assert.False(t, ok)
}

// panickyModel blows up when asked for predictions, standing in for a model
// whose loaded artifact is internally inconsistent.
type panickyModel struct{}

func (panickyModel) Fit(X *mat.Dense, y []float64) error { return nil }
func (panickyModel) Predict(X *mat.Dense) []float64      { panic("mat: column index out of range") }
func (panickyModel) PredictProba(X *mat.Dense) *mat.Dense {
	panic("mat: column index out of range")
}
func (panickyModel) NumClasses() int { return 2 }
func (panickyModel) Kind() string    { return "panicky" }

func TestManagerRecoversPanic(t *testing.T) {
	loader := &stubLoader{model: panickyModel{}, features: []string{"a", "b"}}
	manager := NewManager(loader, zap.NewNop(), testOptions())

	id := manager.Start("run-z", parseFrame(t, "a,b\n1,2\n3,4\n"))

	progress := waitTerminal(t, manager, id)
	assert.Equal(t, models.StatusError, progress.Status)
	assert.Contains(t, progress.Error, "panicked")
	assert.Contains(t, progress.Error, "column index out of range")

	_, ok := manager.Result(id)
	assert.False(t, ok)
}

func TestManagerMissingFeature(t *testing.T) {
	loader := &stubLoader{model: fittedTree(t), features: []string{"a", "missing"}}
	manager := NewManager(loader, zap.NewNop(), testOptions())

	id := manager.Start("run-y", parseFrame(t, "a,b\n1,2\n3,4\n"))

	progress := waitTerminal(t, manager, id)
	assert.Equal(t, models.StatusError, progress.Status)
	assert.Contains(t, progress.Error, "missing model feature")
}

func TestManagerUnknownID(t *testing.T) {
	manager := NewManager(&stubLoader{}, zap.NewNop(), testOptions())

	_, ok := manager.Progress("nope")
	assert.False(t, ok)
	_, ok = manager.Result("nope")
	assert.False(t, ok)
}

func TestPrepareData(t *testing.T) {
	t.Run("no feature names keeps dataset order", func(t *testing.T) {
		frame := parseFrame(t, "x,y\n1,2\n3,4\n")
		X, names, err := prepareData(frame, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, names)
		assert.Equal(t, 1.0, X.At(0, 0))
	})

	t.Run("reorders to model features", func(t *testing.T) {
		frame := parseFrame(t, "x,y\n1,2\n3,4\n")
		X, names, err := prepareData(frame, []string{"y", "x"})
		require.NoError(t, err)
		assert.Equal(t, []string{"y", "x"}, names)
		assert.Equal(t, 2.0, X.At(0, 0))
		assert.Equal(t, 1.0, X.At(0, 1))
	})

	t.Run("non-numeric columns are skipped before alignment", func(t *testing.T) {
		frame := parseFrame(t, "name,x\nfoo,1\nbar,2\n")
		_, _, err := prepareData(frame, []string{"name", "x"})
		require.Error(t, err)
	})
}
