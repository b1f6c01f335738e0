package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/imishinist/mlflow-dashboard/internal/compute"
	"github.com/imishinist/mlflow-dashboard/internal/config"
	"github.com/imishinist/mlflow-dashboard/internal/mlflow"
	"github.com/imishinist/mlflow-dashboard/internal/server"
	"github.com/imishinist/mlflow-dashboard/internal/shap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API server",
	Long: `Run the feature analysis dashboard backend: run browsing, CSV upload
validation, SHAP computation, and websocket progress streaming.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8000)")
	serveCmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (can be specified multiple times)")
	viper.BindPFlag("server_addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("cors_origins", serveCmd.Flags().Lookup("cors-origin"))
}

func serve(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MLflow client: %w", err)
	}

	manager := compute.NewManager(&compute.TrackingLoader{Client: client}, logger, shap.Options{
		BackgroundSamples: cfg.BackgroundSamples,
		KernelSamples:     cfg.KernelSamples,
		Seed:              42,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, client, manager, logger)
	logger.Info("starting dashboard",
		zap.String("tracking_uri", cfg.TrackingURI),
		zap.String("addr", cfg.ServerAddr))

	return srv.Run(ctx)
}

func newLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
