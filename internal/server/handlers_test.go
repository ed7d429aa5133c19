package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/agent"
	"github.com/hyperjump/tsukuru/internal/config"
	"github.com/hyperjump/tsukuru/internal/extract"
	"github.com/hyperjump/tsukuru/internal/keyword"
	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/pipeline"
	"github.com/hyperjump/tsukuru/internal/retrieval"
	"github.com/hyperjump/tsukuru/internal/storage"
	"github.com/hyperjump/tsukuru/internal/vector"
	"github.com/hyperjump/tsukuru/internal/workspace"
)

const (
	pmResponse   = `{"analysis": "one endpoint", "specifications": [{"component": "Health"}], "technical_considerations": [], "success_metrics": []}`
	devResponse  = `{"implementation_plan": "p", "files": [{"path": "main.py", "content": "print('ok')", "description": "entry"}], "dependencies": [], "setup_commands": ["python main.py"], "notes": "ready"}`
	testResponse = `{"review_summary": "fine", "issues_found": [], "test_files": [{"path": "test_main.py", "content": "assert True", "description": "smoke"}], "recommendations": [], "quality_score": "8", "requirements_coverage": "full"}`
)

func newTestServer(t *testing.T, responses ...string) (*Server, *llm.MockClient) {
	t.Helper()
	client := llm.NewMockClient(32, responses...)

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kw, err := keyword.NewMemoryBleveIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	idx, err := vector.NewMemoryIndex(client.Dimensions())
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Retrieval.Extensions = []string{".txt", ".md"}

	svc := retrieval.NewService(store, client, idx, kw, &cfg.Retrieval, extract.NewExtractor())
	coordinator := pipeline.NewCoordinator(
		svc,
		agent.New(agent.ProductManager, client),
		agent.New(agent.Developer, client),
		agent.New(agent.Tester, client),
		3,
	)
	writer, err := workspace.NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(svc, coordinator, writer, client, cfg, zap.NewNop()), client
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleIngestAndSearch(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api.md"), []byte("endpoints use JSON"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/ingest", map[string]string{"path": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body)
	}
	var ingest ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ingest); err != nil {
		t.Fatal(err)
	}
	if ingest.FilesProcessed != 1 {
		t.Errorf("files processed = %d", ingest.FilesProcessed)
	}

	rec = doJSON(t, s.Routes(), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "endpoints", "limit": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", rec.Code, rec.Body)
	}
	var search struct {
		Mode     string `json:"mode"`
		Passages []struct {
			Content string `json:"content"`
		} `json:"passages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &search); err != nil {
		t.Fatal(err)
	}
	if search.Mode != "vector" || len(search.Passages) != 1 {
		t.Errorf("search response = %+v", search)
	}
}

func TestHandleSearchKeywordMode(t *testing.T) {
	s, _ := newTestServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "auth.md"), []byte("bearer token authentication"), 0644); err != nil {
		t.Fatal(err)
	}
	doJSON(t, s.Routes(), http.MethodPost, "/api/v1/ingest", map[string]string{"path": dir})

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "bearer token", "mode": "keyword"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		KeywordHits []struct {
			Score float64 `json:"score"`
		} `json:"keyword_hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.KeywordHits) == 0 {
		t.Error("expected keyword hits")
	}
}

func TestHandleIngestMissingDir(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/ingest",
		map[string]string{"path": "/nonexistent/kb"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSearchBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/search", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d", rec.Code)
	}
	rec = doJSON(t, s.Routes(), http.MethodPost, "/api/v1/search",
		map[string]string{"query": "x", "mode": "hybrid"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	s, client := newTestServer(t, "The API uses JSON everywhere.")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api.md"), []byte("endpoints use JSON"), 0644); err != nil {
		t.Fatal(err)
	}
	doJSON(t, s.Routes(), http.MethodPost, "/api/v1/ingest", map[string]string{"path": dir})

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/ask",
		map[string]string{"question": "what format do endpoints use?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "The API uses JSON everywhere." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if len(client.Prompts) != 1 {
		t.Fatalf("prompts = %d", len(client.Prompts))
	}
}

func TestHandleGeneratePreview(t *testing.T) {
	s, _ := newTestServer(t, pmResponse, devResponse, testResponse)

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/generate",
		map[string]interface{}{"instruction": "add a health endpoint"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Applied {
		t.Error("preview run must not be applied")
	}
	if len(resp.AgentsInvolved) != 3 {
		t.Errorf("agents = %+v", resp.AgentsInvolved)
	}
	if len(resp.Files) != 2 {
		t.Errorf("files = %+v", resp.Files)
	}
	if len(resp.Commands) != 1 || resp.Commands[0] != "python main.py" {
		t.Errorf("commands = %v", resp.Commands)
	}
	// Preview must not write anything into the workspace.
	info, err := s.writer.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.TotalFiles != 0 {
		t.Errorf("workspace files after preview = %d", info.TotalFiles)
	}
}

func TestHandleGenerateApply(t *testing.T) {
	s, _ := newTestServer(t, pmResponse, devResponse, testResponse)

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/generate",
		map[string]interface{}{"instruction": "add a health endpoint", "apply": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Applied || len(resp.Files) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	for _, f := range resp.Files {
		if _, err := os.Stat(f.Path); err != nil {
			t.Errorf("file %s not written: %v", f.Path, err)
		}
	}
}

func TestHandleWorkspaceInfo(t *testing.T) {
	s, _ := newTestServer(t, pmResponse, devResponse, testResponse)
	doJSON(t, s.Routes(), http.MethodPost, "/api/v1/generate",
		map[string]interface{}{"instruction": "x", "apply": true})

	rec := doJSON(t, s.Routes(), http.MethodGet, "/api/v1/workspace", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info workspace.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if !info.Exists || info.TotalFiles != 2 {
		t.Errorf("info = %+v", info)
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp["documents"]; !ok {
		t.Error("status missing document count")
	}
}

func TestHandleWatchDisabled(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.Routes(), http.MethodGet, "/api/v1/watch/directories", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestHandleGenerateBackendFailure(t *testing.T) {
	s, client := newTestServer(t)
	client.GenerateErr = context.DeadlineExceeded

	rec := doJSON(t, s.Routes(), http.MethodPost, "/api/v1/generate",
		map[string]string{"instruction": "x"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
