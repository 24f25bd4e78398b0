package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marginperceptron/config"
	"marginperceptron/db"
	"marginperceptron/monitoring"
	"marginperceptron/pipeline"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "perceptron-http")
	if err != nil {
		panic(err)
	}
	if err := db.InitDB(filepath.Join(dir, "test.db")); err != nil {
		panic(err)
	}

	code := m.Run()

	db.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestHandler(t *testing.T) (http.Handler, *Handlers) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "toy.txt")
	if err := os.WriteFile(path, []byte("2,1\n1,0,1\n-1,0,-1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(bad, []byte("2,1\n1,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	metrics := monitoring.NewMetricsCollector()
	trainer, err := pipeline.NewTrainer(pipeline.TrainerConfig{},
		pipeline.WithStore(pipeline.DBStore{}),
		pipeline.WithMetrics(metrics))
	if err != nil {
		t.Fatal(err)
	}
	h := &Handlers{
		Trainer: trainer,
		Metrics: metrics,
		Datasets: []config.DatasetConfig{
			{Name: "toy", Path: path},
			{Name: "bad", Path: bad},
		},
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, h)
	return Chain(RecoveryMiddleware, LoggerMiddleware)(mux), h
}

func TestHealthHandler(t *testing.T) {
	handler, _ := newTestHandler(t)
	req := httptest.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing request id header")
	}
}

func TestTrainThenListRuns(t *testing.T) {
	handler, _ := newTestHandler(t)

	body, _ := json.Marshal(TrainRequest{Name: "toy"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/train", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("train returned %d: %s", rr.Code, rr.Body.String())
	}
	var report pipeline.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Result.Converged || report.Metrics.Margin != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/runs?dataset=toy&limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("runs returned %d", rr.Code)
	}
	var runs []db.TrainingRun
	if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) == 0 || runs[0].RunID != report.RunID {
		t.Fatalf("expected run %s first, got %+v", report.RunID, runs)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/metrics", nil))
	var metrics []monitoring.DatasetMetrics
	if err := json.Unmarshal(rr.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].Converged != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestTrainRejectsBadRequests(t *testing.T) {
	handler, h := newTestHandler(t)
	toyPath := h.Datasets[0].Path

	cases := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`{"name":"nope"}`, http.StatusNotFound},
		{`{"name":"bad"}`, http.StatusUnprocessableEntity},
		{`{"name":"toy","path":"` + toyPath + `"}`, http.StatusOK},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/train", bytes.NewBufferString(c.body)))
		if rr.Code != c.want {
			t.Errorf("body %s: got %d want %d", c.body, rr.Code, c.want)
		}
	}
}

func TestTrainOnlyOpensConfiguredFiles(t *testing.T) {
	handler, _ := newTestHandler(t)
	secret := filepath.Join(t.TempDir(), "secrets.csv")
	if err := os.WriteFile(secret, []byte("api_key=hunter2,foo\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		body string
		want int
	}{
		{`{"name":"x","path":"` + secret + `"}`, http.StatusNotFound},
		{`{"name":"toy","path":"` + secret + `"}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/train", bytes.NewBufferString(c.body)))
		if rr.Code != c.want {
			t.Errorf("body %s: got %d want %d", c.body, rr.Code, c.want)
		}
		if strings.Contains(rr.Body.String(), "hunter2") {
			t.Errorf("response leaks file contents: %s", rr.Body.String())
		}
	}
}

func TestWebSocketDisabled(t *testing.T) {
	handler, _ := newTestHandler(t)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/ws/training", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	rr := httptest.NewRecorder()
	RecoveryMiddleware(panicky).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
