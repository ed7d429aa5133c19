package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/tsukuru/pkg/utils"
)

// Ensure OllamaClient implements the interface.
var _ Client = (*OllamaClient)(nil)

// Default configuration values.
const (
	DefaultHost           = "http://localhost:11434"
	DefaultLLMModel       = "qwen2.5-coder"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultTimeout        = 120 * time.Second
	DefaultDimensions     = 768 // nomic-embed-text
)

// OllamaConfig holds configuration for the Ollama client.
type OllamaConfig struct {
	Host           string
	LLMModel       string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
}

// OllamaClient talks to an Ollama server over HTTP.
type OllamaClient struct {
	client         *http.Client
	host           string
	llmModel       string
	embeddingModel string
	dimensions     int
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// embedRequest is the Ollama /api/embeddings request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama /api/embeddings response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaClient creates an Ollama client, applying defaults for zero values.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = DefaultLLMModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaClient{
		client:         &http.Client{Timeout: cfg.Timeout},
		host:           cfg.Host,
		llmModel:       cfg.LLMModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
	}
}

// GenerateText sends one chat request with an optional system message and
// returns the complete response text.
func (c *OllamaClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	reqBody := chatRequest{
		Model:    c.llmModel,
		Messages: messages,
		Stream:   false,
	}
	var resp chatResponse
	if err := c.post(ctx, "/api/chat", reqBody, &resp); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Message.Content, nil
}

// Embed generates a vector embedding for the given text. The vector is
// L2-normalized so downstream dot products are true cosine similarities;
// the backend's raw embeddings are not unit length.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{
		Model:  c.embeddingModel,
		Prompt: text,
	}
	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// Dimensions returns the configured embedding vector size.
func (c *OllamaClient) Dimensions() int {
	return c.dimensions
}

// Ping validates the server is reachable via the /api/tags endpoint.
// A lightweight check used at startup; no inference is run.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources. The HTTP client needs no explicit cleanup.
func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) post(ctx context.Context, path string, reqBody, out interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
