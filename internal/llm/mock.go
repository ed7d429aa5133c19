package llm

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hyperjump/tsukuru/pkg/utils"
)

// MockClient is a deterministic in-memory backend for tests. Embeddings are
// derived from a text hash so the same text always gets the same vector;
// generation replies are scripted and consumed in order.
type MockClient struct {
	mu         sync.Mutex
	dimensions int
	responses  []string
	next       int

	// GenerateErr and EmbedErr, when set, are returned by every call.
	GenerateErr error
	EmbedErr    error

	// Prompts records the user prompt of each GenerateText call, in order.
	Prompts []string
	// SystemPrompts records the system prompt of each GenerateText call.
	SystemPrompts []string
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a mock backend producing vectors of the given
// dimension and the scripted responses in order. After the script is
// exhausted, GenerateText returns the empty string.
func NewMockClient(dimensions int, responses ...string) *MockClient {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockClient{dimensions: dimensions, responses: responses}
}

// GenerateText returns the next scripted response.
func (m *MockClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	m.SystemPrompts = append(m.SystemPrompts, systemPrompt)
	m.Prompts = append(m.Prompts, userPrompt)
	if m.next >= len(m.responses) {
		return "", nil
	}
	resp := m.responses[m.next]
	m.next++
	return resp, nil
}

// Embed returns a unit-length vector derived from the text hash.
func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := int(h.Sum32() % 10000)
	emb := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(seed*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (m *MockClient) Dimensions() int {
	return m.dimensions
}

// Close is a no-op for MockClient.
func (m *MockClient) Close() error {
	return nil
}
