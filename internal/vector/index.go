// Package vector provides an in-memory vector index with cosine-distance search.
package vector

import "context"

// Index defines vector storage and nearest-neighbor search.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k results ordered by ascending cosine distance;
	// ties are broken by insertion order (stable).
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single nearest-neighbor hit.
type Result struct {
	ID string
	// Distance is the cosine distance (1 - cosine similarity); 0 is identical.
	Distance float64
}
