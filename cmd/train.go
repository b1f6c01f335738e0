package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imishinist/mlflow-dashboard/internal/config"
	"github.com/imishinist/mlflow-dashboard/internal/mlflow"
	"github.com/imishinist/mlflow-dashboard/internal/parser"
	"github.com/imishinist/mlflow-dashboard/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train <dataset>",
	Short: "Train an example model and log it to MLflow",
	Long: `Train one of the bundled example models (iris, titanic, hotel) on a CSV
file and log parameters, metrics, and the model artifact to a new MLflow run.
The resulting run can then be explained through the dashboard.`,
	Example: `  # Train the iris decision tree
  mlflow-dashboard train iris --data ./data/iris.csv

  # Train titanic with a random forest instead of logistic regression
  mlflow-dashboard train titanic --data ./data/titanic.csv --model random_forest`,
	Args: cobra.ExactArgs(1),
	RunE: train,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("data", "", "Path to the dataset CSV file (required)")
	trainCmd.Flags().String("model", "", "Model kind override (decision_tree/random_forest/logistic_regression)")
	trainCmd.Flags().String("run-name", "", "Run name (default: <dataset>_<model>)")
	trainCmd.Flags().String("params-file", "", "Extra hyperparameters to log, from a JSON/YAML file")
	trainCmd.Flags().String("experiment-id", "", "Experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	trainCmd.MarkFlagRequired("data")
}

func train(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MLflow client: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dataPath, _ := cmd.Flags().GetString("data")
	modelKind, _ := cmd.Flags().GetString("model")
	runName, _ := cmd.Flags().GetString("run-name")
	paramsFile, _ := cmd.Flags().GetString("params-file")
	experimentID, _ := cmd.Flags().GetString("experiment-id")

	if experimentID == "" {
		experimentID = cfg.ExperimentID
	}
	if experimentID == "" {
		return fmt.Errorf("experiment ID must be specified via --experiment-id flag or MLFLOW_EXPERIMENT_ID environment variable")
	}

	extraParams, err := loadExtraParams(paramsFile)
	if err != nil {
		return err
	}

	trainer := &training.Trainer{
		Client:       client,
		ExperimentID: experimentID,
		Logger:       logger,
	}

	result, err := trainer.Train(context.Background(), args[0], dataPath, modelKind, runName, extraParams)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Printf("Training complete\n")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Model: %s\n", result.Model)
	for _, key := range []string{"accuracy", "precision", "recall", "f1_score"} {
		fmt.Printf("  %-10s %.4f\n", key, result.Metrics[key])
	}

	return nil
}

// loadExtraParams reads additional hyperparameters from a JSON or YAML file
// using the same parsers as the log commands.
func loadExtraParams(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open params file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return parser.ParseJSONParams(file)
	case ".yaml", ".yml":
		return parser.ParseYAMLParams(file)
	default:
		return nil, fmt.Errorf("unsupported params file format: %s (expected .json, .yaml, or .yml)", ext)
	}
}
