// Package storage defines the persistence interface for ingested documents.
package storage

import (
	"context"

	"github.com/hyperjump/tsukuru/internal/models"
)

// Storage defines document persistence operations.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	// FindBySource returns documents whose source metadata equals path,
	// newest first. Used by the watcher to supersede re-ingested files.
	FindBySource(ctx context.Context, path string) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)
	Close() error
}
