package server

import (
	"net/http"
	"strings"
)

func (s *Server) handleShapCompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")

	frame, _, ok := s.readCSVUpload(w, r)
	if !ok {
		return
	}

	// The multipart form is parsed by now, so a form-field run_id works too.
	if runID == "" {
		runID = r.FormValue("run_id")
	}
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id required")
		return
	}

	id := s.compute.Start(runID, frame)

	writeJSON(w, http.StatusOK, map[string]string{
		"computation_id": id,
		"status":         "queued",
	})
}

func (s *Server) handleShapResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/shap/results/")
	result, ok := s.compute.Result(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Computation not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleShapDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/shap/download/")
	result, ok := s.compute.Result(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Computation not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="shap_results_`+id+`.json"`)
	writeJSON(w, http.StatusOK, result)
}
