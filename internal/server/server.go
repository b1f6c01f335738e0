// Package server exposes the dashboard HTTP API: run browsing, CSV upload,
// SHAP computation, and the websocket progress feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/imishinist/mlflow-dashboard/internal/compute"
	"github.com/imishinist/mlflow-dashboard/internal/config"
	"github.com/imishinist/mlflow-dashboard/internal/models"
)

// RunService is the slice of the tracking client the API needs.
type RunService interface {
	SearchRuns(ctx context.Context, experimentIDs []string) ([]models.RunInfo, error)
	GetRunDetail(ctx context.Context, runID string) (*models.RunDetail, error)
}

type Server struct {
	cfg     *config.Config
	runs    RunService
	compute *compute.Manager
	logger  *zap.Logger
	mux     *http.ServeMux
}

func New(cfg *config.Config, runs RunService, manager *compute.Manager, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		runs:    runs,
		compute: manager,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/runs/", s.handleRunDetail)
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/shap/compute", s.handleShapCompute)
	s.mux.HandleFunc("/api/shap/results/", s.handleShapResults)
	s.mux.HandleFunc("/api/shap/download/", s.handleShapDownload)
	s.mux.HandleFunc("/ws/shap/", s.handleShapProgress)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleRoot)
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.withLogging(s.withCORS(s.mux))
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ServerAddr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard server listening", zap.String("addr", s.cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"mlflow_uri": s.cfg.TrackingURI,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "MLflow Feature Analysis API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"runs":         "/api/runs",
			"upload":       "/api/upload",
			"shap_compute": "/api/shap/compute",
			"shap_results": "/api/shap/results/{computation_id}",
			"health":       "/health",
		},
	})
}
