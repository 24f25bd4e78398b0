package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"marginperceptron/config"
	"marginperceptron/db"
	"marginperceptron/ml"
	"marginperceptron/monitoring"
	"marginperceptron/pipeline"
)

// Handlers holds what the endpoints need. Nil fields disable their endpoints.
type Handlers struct {
	Trainer  *pipeline.Trainer
	Hub      *monitoring.Hub
	Metrics  *monitoring.MetricsCollector
	Datasets []config.DatasetConfig
}

func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/runs", handleRuns)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("POST /api/train", h.handleTrain)
	mux.HandleFunc("GET /api/ws/training", h.handleWebSocket)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		runs []db.TrainingRun
		err  error
	)
	if name := r.URL.Query().Get("dataset"); name != "" {
		runs, err = db.LoadTrainingRunsForDataset(name, limit)
	} else {
		runs, err = db.LoadTrainingRuns(limit)
	}
	if errors.Is(err, db.ErrNotInitialized) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		writeJSON(w, http.StatusOK, []monitoring.DatasetMetrics{})
		return
	}
	writeJSON(w, http.StatusOK, h.Metrics.Snapshot())
}

// TrainRequest selects a configured dataset by name. Path is optional and,
// when set, must be the configured path of that dataset.
type TrainRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (h *Handlers) handleTrain(w http.ResponseWriter, r *http.Request) {
	if h.Trainer == nil {
		writeError(w, http.StatusServiceUnavailable, "trainer not configured")
		return
	}
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ds, ok := h.lookupDataset(req.Name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown dataset "+req.Name)
		return
	}
	if req.Path != "" && filepath.Clean(req.Path) != filepath.Clean(ds.Path) {
		writeError(w, http.StatusBadRequest, "path does not match configured dataset "+req.Name)
		return
	}

	report, err := h.Trainer.TrainFile(r.Context(), ds.Name, ds.Path)
	switch {
	case errors.Is(err, ml.ErrInvalidInput), errors.Is(err, ml.ErrDimensionMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// lookupDataset finds a dataset among the configured ones. Only configured
// files are ever opened on behalf of a client.
func (h *Handlers) lookupDataset(name string) (config.DatasetConfig, bool) {
	for _, d := range h.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return config.DatasetConfig{}, false
}

func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring disabled")
		return
	}
	h.Hub.HandleWebSocket(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
