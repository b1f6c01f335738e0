package compute

import (
	"context"
	"fmt"

	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/mlflow"
)

// TrackingLoader loads model artifacts through the MLflow tracking client.
type TrackingLoader struct {
	Client *mlflow.Client
}

func (l *TrackingLoader) LoadModel(ctx context.Context, runID string) (ml.Model, []string, error) {
	data, err := l.Client.DownloadArtifact(ctx, runID, ml.ModelArtifactPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download model artifact for run %s: %w", runID, err)
	}

	model, features, err := ml.Load(data)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid model artifact for run %s: %w", runID, err)
	}

	return model, features, nil
}
