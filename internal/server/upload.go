package server

import (
	"errors"
	"net/http"

	"github.com/imishinist/mlflow-dashboard/internal/dataset"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	frame, filename, ok := s.readCSVUpload(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, frame.Summary(filename))
}

// readCSVUpload extracts and parses the multipart "file" field, writing the
// appropriate error response itself. The size cap is enforced while reading.
func (s *Server) readCSVUpload(w http.ResponseWriter, r *http.Request) (*dataset.Frame, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "file field is required")
		return nil, "", false
	}
	defer file.Close()

	frame, err := dataset.ParseCSV(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "Invalid CSV: "+err.Error())
		return nil, "", false
	}

	return frame, header.Filename, true
}
