// Package keyword provides keyword (BM25) indexing and search over ingested documents.
package keyword

import (
	"context"

	"github.com/hyperjump/tsukuru/internal/models"
)

// Index defines keyword search operations.
type Index interface {
	Index(ctx context.Context, id string, doc *models.Document) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
