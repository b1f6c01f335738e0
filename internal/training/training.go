// Package training implements the bundled example training pipelines. Each
// dataset has a preprocessing recipe; results are logged as a new MLflow run
// with params, metrics, and the serialized model artifact.
package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/mlflow"
	"github.com/imishinist/mlflow-dashboard/internal/models"
)

const (
	testFraction = 0.2
	splitSeed    = 42
)

type Trainer struct {
	Client       *mlflow.Client
	ExperimentID string
	Logger       *zap.Logger
}

// Train runs the named recipe over a CSV file, trains and evaluates the
// model, and records everything under a new run.
func (t *Trainer) Train(ctx context.Context, recipeName, dataPath, modelKind, runName string, extraParams map[string]string) (*models.TrainingResult, error) {
	recipe, err := Recipe(recipeName)
	if err != nil {
		return nil, err
	}
	if modelKind == "" {
		modelKind = recipe.ModelKind
	}
	if runName == "" {
		runName = recipeName + "_" + modelKind
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	frame, err := dataset.ParseCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	t.Logger.Info("loaded dataset",
		zap.String("recipe", recipeName),
		zap.Int("rows", frame.NumRows()),
		zap.Int("columns", len(frame.Columns)))

	featureFrame, y, err := recipe.Preprocess(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess dataset: %w", err)
	}

	X, features, err := featureFrame.NumericMatrix()
	if err != nil {
		return nil, err
	}

	XTrain, XTest, yTrain, yTest := dataset.TrainTestSplit(X, y, testFraction, splitSeed)

	model, err := ml.NewModel(modelKind)
	if err != nil {
		return nil, err
	}

	t.Logger.Info("training model", zap.String("model", modelKind), zap.Strings("features", features))
	if err := model.Fit(XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	evaluation := ml.Evaluate(yTest, model.Predict(XTest), model.NumClasses())
	t.Logger.Info("model performance",
		zap.Float64("accuracy", evaluation.Accuracy),
		zap.Float64("precision", evaluation.Precision),
		zap.Float64("recall", evaluation.Recall),
		zap.Float64("f1", evaluation.F1))

	runID, err := t.logRun(ctx, runName, modelKind, features, model, evaluation, extraParams)
	if err != nil {
		return nil, err
	}

	trainRows, _ := XTrain.Dims()
	testRows, _ := XTest.Dims()
	return &models.TrainingResult{
		RunID: runID,
		Model: modelKind,
		Metrics: map[string]float64{
			"accuracy":  evaluation.Accuracy,
			"precision": evaluation.Precision,
			"recall":    evaluation.Recall,
			"f1_score":  evaluation.F1,
		},
		ConfusionMatrix: evaluation.ConfusionMatrix,
		TrainSamples:    trainRows,
		TestSamples:     testRows,
	}, nil
}

// logRun records params, metrics, and the model artifact, ending the run
// FINISHED on success and FAILED when any logging step errors.
func (t *Trainer) logRun(ctx context.Context, runName, modelKind string, features []string, model ml.Model, evaluation ml.Evaluation, extraParams map[string]string) (string, error) {
	runInfo, err := t.Client.CreateRun(ctx, &models.RunConfig{
		ExperimentID: &t.ExperimentID,
		RunName:      &runName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	runID := runInfo.RunID

	if err := t.record(ctx, runID, modelKind, features, model, evaluation, extraParams); err != nil {
		if endErr := t.Client.UpdateRun(ctx, runID, models.RunStatusFailed); endErr != nil {
			t.Logger.Warn("failed to mark run as failed", zap.String("run_id", runID), zap.Error(endErr))
		}
		return "", err
	}

	if err := t.Client.UpdateRun(ctx, runID, models.RunStatusFinished); err != nil {
		return "", fmt.Errorf("failed to end run: %w", err)
	}

	t.Logger.Info("model logged", zap.String("run_id", runID))
	return runID, nil
}

func (t *Trainer) record(ctx context.Context, runID, modelKind string, features []string, model ml.Model, evaluation ml.Evaluation, extraParams map[string]string) error {
	params := map[string]string{
		"model_type":   modelKind,
		"test_size":    fmt.Sprintf("%g", testFraction),
		"random_state": strconv.Itoa(splitSeed),
		"features":     strconv.Itoa(len(features)),
	}
	for key, value := range extraParams {
		params[key] = value
	}
	if err := t.Client.LogParamsFromMap(ctx, runID, params); err != nil {
		return err
	}

	metrics := map[string]float64{
		"accuracy":  evaluation.Accuracy,
		"precision": evaluation.Precision,
		"recall":    evaluation.Recall,
		"f1_score":  evaluation.F1,
	}
	for key, value := range metrics {
		if err := t.Client.LogMetric(ctx, runID, key, value, nil, nil); err != nil {
			return err
		}
	}

	data, err := ml.Save(model, features)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "mlflow-dashboard-model-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	modelPath := filepath.Join(tmpDir, "model.json")
	if err := os.WriteFile(modelPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := t.Client.UploadArtifact(ctx, runID, modelPath, ml.ModelArtifactPath); err != nil {
		return fmt.Errorf("failed to upload model artifact: %w", err)
	}

	return nil
}
