package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_GenerateText(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "generated text"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL, LLMModel: "test-model"})
	out, err := c.GenerateText(context.Background(), "be helpful", "write code")
	if err != nil {
		t.Fatal(err)
	}
	if out != "generated text" {
		t.Errorf("got %q", out)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[0].Content != "be helpful" {
		t.Errorf("system message: %+v", gotReq.Messages[0])
	}
	if gotReq.Messages[1].Role != "user" || gotReq.Messages[1].Content != "write code" {
		t.Errorf("user message: %+v", gotReq.Messages[1])
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
}

func TestOllamaClient_GenerateText_noSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "ok"}})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL})
	if _, err := c.GenerateText(context.Background(), "", "hi"); err != nil {
		t.Fatal(err)
	}
}

func TestOllamaClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL, Dimensions: 3})
	vec, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
	// Direction is preserved, magnitude is normalized away.
	if vec[1]/vec[0] < 1.99 || vec[1]/vec[0] > 2.01 {
		t.Errorf("vec ratio = %v, want ~2", vec[1]/vec[0])
	}
}

func TestOllamaClient_EmbedNormalizesToUnitLength(t *testing.T) {
	// The backend returns raw vectors of arbitrary magnitude; without
	// normalization, 1-dot is not a cosine distance and a large vector
	// outranks a better-aligned small one.
	raw := map[string][]float64{
		"query": {1, 0},
		"close": {0.9, 0.1},
		"far":   {3, 3},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: raw[req.Prompt]})
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL, Dimensions: 2})
	embed := func(text string) []float32 {
		vec, err := c.Embed(context.Background(), text)
		if err != nil {
			t.Fatal(err)
		}
		return vec
	}
	dot := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i] * b[i])
		}
		return sum
	}

	query := embed("query")
	near := embed("close")
	far := embed("far")

	for name, vec := range map[string][]float32{"query": query, "near": near, "far": far} {
		if norm := dot(vec, vec); norm < 0.999 || norm > 1.001 {
			t.Errorf("%s embedding norm = %v, want 1", name, norm)
		}
	}
	// With unit vectors, the better-aligned document must win regardless of
	// the backend's raw magnitudes, and 1-dot stays within [0, 2].
	if dot(query, near) <= dot(query, far) {
		t.Errorf("similarity(query, near) = %v not above similarity(query, far) = %v",
			dot(query, near), dot(query, far))
	}
	if d := 1 - dot(query, far); d < 0 || d > 2 {
		t.Errorf("distance to far = %v, outside [0, 2]", d)
	}
}

func TestOllamaClient_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(OllamaConfig{Host: srv.URL})
	if _, err := c.GenerateText(context.Background(), "", "hi"); err == nil {
		t.Error("expected error on non-200 response")
	}
	if _, err := c.Embed(context.Background(), "hi"); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestMockClient_deterministicEmbeddings(t *testing.T) {
	m := NewMockClient(8)
	a, err := m.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Embed(context.Background(), "same text")
	c, _ := m.Embed(context.Background(), "other text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text must embed identically")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}

func TestMockClient_scriptedResponses(t *testing.T) {
	m := NewMockClient(4, "first", "second")
	out, _ := m.GenerateText(context.Background(), "sys", "user")
	if out != "first" {
		t.Errorf("got %q", out)
	}
	out, _ = m.GenerateText(context.Background(), "sys", "user")
	if out != "second" {
		t.Errorf("got %q", out)
	}
	out, _ = m.GenerateText(context.Background(), "sys", "user")
	if out != "" {
		t.Errorf("exhausted script should return empty, got %q", out)
	}
}
