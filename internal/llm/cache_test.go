package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type countingClient struct {
	*MockClient
	embedCalls int
}

func (c *countingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.MockClient.Embed(ctx, text)
}

func TestCachedClient_EmbedHitsCache(t *testing.T) {
	inner := &countingClient{MockClient: NewMockClient(8)}
	client := NewCachedClient(inner, 4)
	ctx := context.Background()

	first, err := client.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("backend embed calls = %d, want 1", inner.embedCalls)
	}
	if len(first) != 8 || len(second) != 8 {
		t.Errorf("embedding lengths = %d, %d", len(first), len(second))
	}
}

func TestCachedClient_EvictsOldest(t *testing.T) {
	inner := &countingClient{MockClient: NewMockClient(8)}
	client := NewCachedClient(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := client.Embed(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted; embedding it again goes to the backend.
	if _, err := client.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 4 {
		t.Errorf("backend embed calls = %d, want 4", inner.embedCalls)
	}
	// "c" is still cached.
	if _, err := client.Embed(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 4 {
		t.Errorf("backend embed calls after cached hit = %d, want 4", inner.embedCalls)
	}
}

func TestCachedClient_ErrorNotCached(t *testing.T) {
	inner := NewMockClient(8)
	inner.EmbedErr = errors.New("backend down")
	client := NewCachedClient(inner, 4)

	if _, err := client.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	inner.EmbedErr = nil
	if _, err := client.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestCachedClient_ZeroCapacityUsesDefault(t *testing.T) {
	client := NewCachedClient(NewMockClient(8), 0)
	ctx := context.Background()
	for i := 0; i < DefaultEmbedCacheSize+10; i++ {
		if _, err := client.Embed(ctx, fmt.Sprintf("text-%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if client.lru.Len() != DefaultEmbedCacheSize {
		t.Errorf("cache size = %d, want %d", client.lru.Len(), DefaultEmbedCacheSize)
	}
}
