// Package compute runs SHAP computations in the background and tracks their
// progress and results in memory, keyed by computation ID.
package compute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/models"
	"github.com/imishinist/mlflow-dashboard/internal/shap"
)

// ModelLoader fetches a trained model and its feature names for a run.
type ModelLoader interface {
	LoadModel(ctx context.Context, runID string) (ml.Model, []string, error)
}

// Manager owns all computations. Progress and results survive until the
// process exits; there is no persistence or cancellation.
type Manager struct {
	loader ModelLoader
	logger *zap.Logger
	opts   shap.Options

	mu       sync.RWMutex
	progress map[string]models.Progress
	results  map[string]*models.ShapResult
}

func NewManager(loader ModelLoader, logger *zap.Logger, opts shap.Options) *Manager {
	return &Manager{
		loader:   loader,
		logger:   logger,
		opts:     opts,
		progress: make(map[string]models.Progress),
		results:  make(map[string]*models.ShapResult),
	}
}

// Start registers a new computation and runs it in the background,
// returning its ID immediately.
func (m *Manager) Start(runID string, frame *dataset.Frame) string {
	id := uuid.NewString()

	m.mu.Lock()
	m.progress[id] = models.Progress{
		Status:    models.StatusInitializing,
		Progress:  0,
		StartTime: time.Now(),
	}
	m.mu.Unlock()

	// The computation outlives the request that started it.
	go m.run(context.Background(), id, runID, frame)

	return id
}

// Progress returns the current status of a computation.
func (m *Manager) Progress(id string) (models.Progress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	progress, ok := m.progress[id]
	return progress, ok
}

// Result returns the finished output of a computation.
func (m *Manager) Result(id string) (*models.ShapResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[id]
	return result, ok
}

func (m *Manager) run(ctx context.Context, id, runID string, frame *dataset.Frame) {
	// A panic in model or explainer code must not take the server down;
	// the computation ends in the error state like any other failure.
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Errorf("computation panicked: %v", r))
		}
	}()

	start := time.Now()

	m.setProgress(id, models.StatusLoadingModel, 20)
	model, features, err := m.loader.LoadModel(ctx, runID)
	if err != nil {
		m.fail(id, fmt.Errorf("failed to load model: %w", err))
		return
	}

	m.setProgress(id, models.StatusPreparing, 40)
	X, names, err := prepareData(frame, features)
	if err != nil {
		m.fail(id, err)
		return
	}

	m.setProgress(id, models.StatusComputing, 70)
	explainer := shap.NewExplainer(model, X, m.opts)
	perClass, err := explainer.ShapValues(X)
	if err != nil {
		m.fail(id, fmt.Errorf("failed to compute SHAP values: %w", err))
		return
	}

	m.setProgress(id, models.StatusImportance, 90)
	values := shap.Collapse(perClass)
	importance := shap.MeanAbsImportance(values, names)

	rows, cols := values.Dims()
	shapValues := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		shapValues[i] = append([]float64(nil), values.RawRowView(i)...)
	}

	m.mu.Lock()
	m.results[id] = &models.ShapResult{
		ShapValues:        shapValues,
		Features:          names,
		FeatureImportance: importance,
		ModelID:           runID,
		DatasetShape:      [2]int{rows, cols},
		ComputedAt:        time.Now(),
	}
	m.mu.Unlock()

	m.setProgress(id, models.StatusComplete, 100)
	m.logger.Info("SHAP computation completed",
		zap.String("computation_id", id),
		zap.String("run_id", runID),
		zap.Int("samples", rows),
		zap.Int("features", cols),
		zap.Duration("elapsed", time.Since(start)))
}

// prepareData extracts the numeric feature matrix, reordered to the model's
// training features when the artifact names them.
func prepareData(frame *dataset.Frame, features []string) (*mat.Dense, []string, error) {
	X, names, err := frame.NumericMatrix()
	if err != nil {
		return nil, nil, err
	}

	if len(features) == 0 {
		return X, names, nil
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	rows, _ := X.Dims()
	aligned := mat.NewDense(rows, len(features), nil)
	for j, feature := range features {
		src, ok := index[feature]
		if !ok {
			return nil, nil, fmt.Errorf("dataset is missing model feature %q", feature)
		}
		for i := 0; i < rows; i++ {
			aligned.Set(i, j, X.At(i, src))
		}
	}

	return aligned, features, nil
}

func (m *Manager) setProgress(id string, status models.ComputationStatus, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	progress := m.progress[id]
	progress.Status = status
	progress.Progress = percent
	m.progress[id] = progress
}

func (m *Manager) fail(id string, err error) {
	m.logger.Error("SHAP computation failed",
		zap.String("computation_id", id),
		zap.Error(err))

	m.mu.Lock()
	defer m.mu.Unlock()

	progress := m.progress[id]
	progress.Status = models.StatusError
	progress.Error = err.Error()
	m.progress[id] = progress
}
