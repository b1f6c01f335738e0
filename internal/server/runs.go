package server

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var experimentIDs []string
	if s.cfg.ExperimentID != "" {
		experimentIDs = append(experimentIDs, s.cfg.ExperimentID)
	}

	runs, err := s.runs.SearchRuns(r.Context(), experimentIDs)
	if err != nil {
		s.logger.Error("failed to search runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	detail, err := s.runs.GetRunDetail(r.Context(), runID)
	if err != nil {
		s.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusNotFound, "Run not found: "+runID)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
