package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mlflow-dashboard",
	Short: "MLflow Feature Analysis Dashboard",
	Long: `Dashboard backend and tooling for MLflow feature analysis.
Serves the run browser / SHAP computation API, trains the bundled example
models, and supports logging parameters, metrics, and artifacts to an
MLflow tracking server.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	rootCmd.PersistentFlags().String("experiment-id", "", "Experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	viper.BindPFlag("tracking_uri", rootCmd.PersistentFlags().Lookup("tracking-uri"))
	viper.BindPFlag("experiment_id", rootCmd.PersistentFlags().Lookup("experiment-id"))
}

func initConfig() {
	// Environment variables
	viper.SetEnvPrefix("MLFLOW")
	viper.AutomaticEnv()

	// Also bind Databricks environment variables
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")

	// Set defaults
	viper.SetDefault("tracking_uri", "http://localhost:5000")
	viper.SetDefault("time_resolution", "1m")
	viper.SetDefault("time_alignment", "floor")
	viper.SetDefault("step_mode", "auto")

	// Dashboard server defaults
	viper.SetDefault("server_addr", ":8000")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	viper.SetDefault("max_upload_bytes", 10*1024*1024)
	viper.SetDefault("progress_interval", "500ms")
	viper.SetDefault("background_samples", 50)
	viper.SetDefault("kernel_samples", 2048)
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
