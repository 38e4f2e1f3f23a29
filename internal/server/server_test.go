package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/db"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/orchestrator"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
)

func setupTest(t *testing.T) *Server {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	store := issues.NewStore(database)
	svc := embeddings.NewService(embeddings.NewMockEmbedder("mock", 16), nil, nil)
	for _, doc := range []issues.Document{
		{Key: "PROJ-7", Summary: "External display flickers on dock", Components: []string{"Display"}},
		{Key: "PROJ-1", Summary: "Display flicker when docked", Components: []string{"Display"}},
		{Key: "PROJ-2", Summary: "Audio crackle over bluetooth", Components: []string{"Audio"}},
	} {
		if err := store.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		vec, err := svc.Embed(ctx, doc.EmbeddingText(), embeddings.TaskRetrievalDocument)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if err := store.SaveEmbedding(ctx, doc.Key, vec); err != nil {
			t.Fatalf("SaveEmbedding: %v", err)
		}
	}

	runStore := runs.NewStore(database)
	orch, err := orchestrator.New(config.PipelineConfig{}, orchestrator.Deps{
		Issues:   store,
		Embedder: svc,
		Runs:     runStore,
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return New(config.ServerConfig{AllowAll: true}, config.PipelineConfig{}, orch, store, runStore, nil)
}

func TestHealthCheck(t *testing.T) {
	srv := setupTest(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := setupTest(t)

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTest(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "aidebug_") {
		t.Error("expected aidebug metrics in exposition")
	}
}

func TestAnalyze(t *testing.T) {
	srv := setupTest(t)

	body := `{"issue_key":"proj-7","logs":"ERROR display pipe underrun\n","save_run":true}`
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/analyze", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res orchestrator.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.IssueKey != "PROJ-7" || len(res.Matches) == 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.HasPrefix(res.Analysis, "Sources: internal issue DB embeddings") {
		t.Errorf("analysis should start with sources:\n%s", res.Analysis)
	}
	if res.Meta.RunID == "" {
		t.Error("run should have been saved")
	}

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/proj-7", nil))
	var recs []runs.Record
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		t.Fatalf("unmarshal runs: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != res.Meta.RunID {
		t.Errorf("unexpected runs %+v", recs)
	}
}

func TestAnalyzeFormats(t *testing.T) {
	srv := setupTest(t)

	for format, want := range map[string]string{
		"markdown": "# PROJ-7: External display flickers on dock",
		"html":     "<title>Analysis PROJ-7</title>",
	} {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/analyze?format="+format, strings.NewReader(`{"issue_key":"PROJ-7"}`)))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", format, w.Code)
		}
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("%s: missing %q", format, want)
		}
	}
}

// countingAnalyzer records how often the pipeline was started.
type countingAnalyzer struct {
	Analyzer
	runs int
}

func (a *countingAnalyzer) Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	a.runs++
	return a.Analyzer.Run(ctx, req)
}

func TestAnalyzeUnknownFormatSkipsRun(t *testing.T) {
	srv := setupTest(t)
	counter := &countingAnalyzer{Analyzer: srv.analyzer}
	srv.analyzer = counter

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/analyze?format=pdf", strings.NewReader(`{"issue_key":"PROJ-7","save_run":true}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", w.Code)
	}
	if counter.runs != 0 {
		t.Errorf("pipeline ran %d times for a rejected format", counter.runs)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	srv := setupTest(t)

	tests := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{"issue_key":"bad key"}`, http.StatusBadRequest},
		{`{"issue_key":"PROJ-404"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("POST", "/api/analyze", bytes.NewBufferString(tt.body)))
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.body, tt.want, w.Code)
		}
	}
}

func TestIssueEndpoints(t *testing.T) {
	srv := setupTest(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/issues/PROJ-1", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Display flicker when docked") {
		t.Errorf("get issue: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/issues/PROJ-99", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/issues/PROJ-7/similar?limit=1", nil))
	var body struct {
		IssueKey string          `json:"issue_key"`
		Matches  []issues.Match `json:"matches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Matches) != 1 || body.Matches[0].Key == "PROJ-7" {
		t.Errorf("unexpected similar matches %+v", body.Matches)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := setupTest(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/search?q=flicker&limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"matches"`) {
		t.Error("expected matches in response")
	}

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/search", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %d", w.Code)
	}
}

func TestAnalyzeStream(t *testing.T) {
	srv := setupTest(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/analyze/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	if err := conn.WriteJSON(analyzeRequest{IssueKey: "PROJ-7", OS: "stream"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var states []string
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "event" {
			states = append(states, msg.State)
			continue
		}
		if msg.Type != "result" || msg.Result == nil || msg.Result.IssueKey != "PROJ-7" {
			t.Fatalf("unexpected message %+v", msg)
		}
		break
	}
	if len(states) == 0 || states[0] != "init" || states[len(states)-1] != "done" {
		t.Errorf("unexpected states %v", states)
	}

	if err := conn.WriteJSON(analyzeRequest{IssueKey: "PROJ-404"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "event" {
			continue
		}
		if msg.Type != "error" || !strings.Contains(msg.Error, "not found") {
			t.Errorf("expected not found error, got %+v", msg)
		}
		break
	}
}
