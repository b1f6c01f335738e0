package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/imishinist/mlflow-dashboard/internal/compute"
	"github.com/imishinist/mlflow-dashboard/internal/config"
	"github.com/imishinist/mlflow-dashboard/internal/ml"
	"github.com/imishinist/mlflow-dashboard/internal/models"
	"github.com/imishinist/mlflow-dashboard/internal/shap"
)

type stubRuns struct {
	runs   []models.RunInfo
	detail *models.RunDetail
	err    error
}

func (s *stubRuns) SearchRuns(ctx context.Context, experimentIDs []string) ([]models.RunInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.runs, nil
}

func (s *stubRuns) GetRunDetail(ctx context.Context, runID string) (*models.RunDetail, error) {
	if s.err != nil || s.detail == nil {
		return nil, fmt.Errorf("run not found")
	}
	return s.detail, nil
}

type stubLoader struct {
	model    ml.Model
	features []string
	err      error
}

func (l *stubLoader) LoadModel(ctx context.Context, runID string) (ml.Model, []string, error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	return l.model, l.features, nil
}

func fittedTree(t *testing.T) ml.Model {
	t.Helper()
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 10, 10, 11, 11})
	y := []float64{0, 0, 1, 1}
	tree := ml.NewDecisionTreeClassifier(5, 2)
	require.NoError(t, tree.Fit(X, y))
	return tree
}

func testConfig() *config.Config {
	return &config.Config{
		TrackingURI:      "http://localhost:5000",
		ServerAddr:       ":0",
		CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
		MaxUploadBytes:   10 * 1024 * 1024,
		ProgressInterval: 10 * time.Millisecond,
	}
}

func newTestServer(t *testing.T, runs RunService, loader compute.ModelLoader) *Server {
	t.Helper()
	manager := compute.NewManager(loader, zap.NewNop(),
		shap.Options{BackgroundSamples: 50, KernelSamples: 256, Seed: 42})
	return New(testConfig(), runs, manager, zap.NewNop())
}

// multipartCSV builds a multipart body with the CSV under the "file" field
// plus any extra form fields.
func multipartCSV(t *testing.T, csv string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "data.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHandleRuns(t *testing.T) {
	t.Run("returns runs with total", func(t *testing.T) {
		runs := &stubRuns{runs: []models.RunInfo{
			{RunID: "r1", RunName: "first", Status: "FINISHED"},
			{RunID: "r2", RunName: "second", Status: "RUNNING"},
		}}
		s := newTestServer(t, runs, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		require.Equal(t, http.StatusOK, resp.Code)
		var body struct {
			Runs  []models.RunInfo `json:"runs"`
			Total int              `json:"total"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, 2, body.Total)
		assert.Equal(t, "r1", body.Runs[0].RunID)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		require.Equal(t, http.StatusOK, resp.Code)
		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, float64(0), body["total"])
	})

	t.Run("tracking error is a 500", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{err: fmt.Errorf("connection refused")}, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		require.Equal(t, http.StatusInternalServerError, resp.Code)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Contains(t, body["detail"], "connection refused")
	})

	t.Run("post is rejected", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
	})
}

func TestHandleRunDetail(t *testing.T) {
	t.Run("returns params and metrics", func(t *testing.T) {
		detail := &models.RunDetail{
			RunInfo: models.RunInfo{RunID: "r1", RunName: "train"},
			Params:  map[string]string{"model_type": "decision_tree"},
			Metrics: map[string]float64{"accuracy": 0.95},
		}
		s := newTestServer(t, &stubRuns{detail: detail}, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil))

		require.Equal(t, http.StatusOK, resp.Code)
		var body models.RunDetail
		decodeBody(t, resp, &body)
		assert.Equal(t, "r1", body.RunID)
		assert.Equal(t, 0.95, body.Metrics["accuracy"])
	})

	t.Run("unknown run is a 404", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))

		require.Equal(t, http.StatusNotFound, resp.Code)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Run not found: missing", body["detail"])
	})
}

func TestHandleUpload(t *testing.T) {
	t.Run("returns the dataset summary", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		body, contentType := multipartCSV(t, "a,b\n1,x\n2,y\n3,\n", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		var summary models.DatasetSummary
		decodeBody(t, resp, &summary)
		assert.Equal(t, "data.csv", summary.Filename)
		assert.Equal(t, [2]int{3, 2}, summary.Shape)
		assert.Equal(t, "int64", summary.DTypes["a"])
		assert.Equal(t, 1, summary.MissingValues["b"])
		assert.Len(t, summary.Preview, 3)
	})

	t.Run("missing file field", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("malformed csv", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		body, contentType := multipartCSV(t, "a,b\n1,2\n3\n", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusBadRequest, resp.Code)
		var errBody map[string]string
		decodeBody(t, resp, &errBody)
		assert.Contains(t, errBody["detail"], "Invalid CSV")
	})

	t.Run("oversized upload is a 413", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})
		s.cfg.MaxUploadBytes = 64

		big := "a,b\n" + strings.Repeat("1,2\n", 100)
		body, contentType := multipartCSV(t, big, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
		var errBody map[string]string
		decodeBody(t, resp, &errBody)
		assert.Equal(t, "File too large", errBody["detail"])
	})
}

func TestHandleShapCompute(t *testing.T) {
	csv := "a,b\n1,1\n2,2\n10,10\n11,11\n"

	t.Run("starts a computation", func(t *testing.T) {
		loader := &stubLoader{model: fittedTree(t), features: []string{"a", "b"}}
		s := newTestServer(t, &stubRuns{}, loader)

		body, contentType := multipartCSV(t, csv, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/shap/compute?run_id=r1", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		var started map[string]string
		decodeBody(t, resp, &started)
		assert.NotEmpty(t, started["computation_id"])
		assert.Equal(t, "queued", started["status"])

		waitForResult(t, s, started["computation_id"])
	})

	t.Run("run_id as form field", func(t *testing.T) {
		loader := &stubLoader{model: fittedTree(t), features: []string{"a", "b"}}
		s := newTestServer(t, &stubRuns{}, loader)

		body, contentType := multipartCSV(t, csv, map[string]string{"run_id": "r2"})
		req := httptest.NewRequest(http.MethodPost, "/api/shap/compute", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		var started map[string]string
		decodeBody(t, resp, &started)

		result := waitForResult(t, s, started["computation_id"])
		assert.Equal(t, "r2", result.ModelID)
	})

	t.Run("missing run_id", func(t *testing.T) {
		s := newTestServer(t, &stubRuns{}, &stubLoader{})

		body, contentType := multipartCSV(t, csv, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/shap/compute", body)
		req.Header.Set("Content-Type", contentType)

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		require.Equal(t, http.StatusBadRequest, resp.Code)
		var errBody map[string]string
		decodeBody(t, resp, &errBody)
		assert.Equal(t, "run_id required", errBody["detail"])
	})
}

// waitForResult polls the results endpoint until the computation finishes.
func waitForResult(t *testing.T, s *Server, id string) *models.ShapResult {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp,
			httptest.NewRequest(http.MethodGet, "/api/shap/results/"+id, nil))
		if resp.Code == http.StatusOK {
			var result models.ShapResult
			decodeBody(t, resp, &result)
			return &result
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("computation did not finish in time")
	return nil
}

func TestHandleShapResults(t *testing.T) {
	s := newTestServer(t, &stubRuns{}, &stubLoader{})

	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp,
		httptest.NewRequest(http.MethodGet, "/api/shap/results/unknown", nil))

	require.Equal(t, http.StatusNotFound, resp.Code)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "Computation not found", body["detail"])
}

func TestHandleShapDownload(t *testing.T) {
	loader := &stubLoader{model: fittedTree(t), features: []string{"a", "b"}}
	s := newTestServer(t, &stubRuns{}, loader)

	body, contentType := multipartCSV(t, "a,b\n1,1\n10,10\n", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/shap/compute?run_id=r1", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var started map[string]string
	decodeBody(t, resp, &started)
	waitForResult(t, s, started["computation_id"])

	resp = httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet,
		"/api/shap/download/"+started["computation_id"], nil))

	require.Equal(t, http.StatusOK, resp.Code)
	disposition := resp.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "attachment")
	assert.Contains(t, disposition, started["computation_id"])
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &stubRuns{}, &stubLoader{})

	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "http://localhost:5000", body["mlflow_uri"])
}

func TestHandleRoot(t *testing.T) {
	s := newTestServer(t, &stubRuns{}, &stubLoader{})

	t.Run("index", func(t *testing.T) {
		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, resp.Code)
		var body map[string]any
		decodeBody(t, resp, &body)
		assert.Equal(t, "MLflow Feature Analysis API", body["name"])
	})

	t.Run("unknown path", func(t *testing.T) {
		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &stubRuns{}, &stubLoader{})

	t.Run("allowed origin is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example.com")

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
		req.Header.Set("Origin", "http://localhost:5173")

		resp := httptest.NewRecorder()
		s.Handler().ServeHTTP(resp, req)

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
	})
}
