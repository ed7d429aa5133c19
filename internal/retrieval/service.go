// Package retrieval ties storage, the vector index, and the keyword index
// together: it ingests knowledge files and answers similarity queries.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/config"
	"github.com/hyperjump/tsukuru/internal/extract"
	"github.com/hyperjump/tsukuru/internal/keyword"
	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/internal/storage"
	"github.com/hyperjump/tsukuru/internal/vector"
)

// ErrNotFound is returned by Ingest when the knowledge directory does not exist.
var ErrNotFound = errors.New("knowledge directory not found")

// Service ingests documents and retrieves passages by vector or keyword search.
type Service struct {
	storage      storage.Storage
	client       llm.Client
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	extractor    *extract.Extractor
	config       *config.RetrievalConfig
	logger       *zap.Logger // optional; when set, logs ingest progress
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for ingest and search debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a retrieval service with the given dependencies.
// extractor may be nil; when nil, all files are treated as plain text.
func NewService(
	store storage.Storage,
	client llm.Client,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg *config.RetrievalConfig,
	extractor *extract.Extractor,
	opts ...Option,
) *Service {
	s := &Service{
		storage:      store,
		client:       client,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		extractor:    extractor,
		config:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest walks dir, extracts text from every supported file, embeds each
// document, and adds it to storage plus both indices. Files that fail
// extraction or come back empty are skipped; an embedding failure aborts the
// whole call (documents already added stay in place). Returns the number of
// documents ingested, or ErrNotFound when dir does not exist.
func (s *Service) Ingest(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	// Document ordinals continue from the current count so ingesting twice
	// never reuses an id.
	count, err := s.storage.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	next := int(count) + 1

	ingested := 0
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !extensionAllowed(filepath.Ext(path), s.config.Extensions) {
			return nil
		}
		docID := fmt.Sprintf("doc_%d", next)
		ok, ingErr := s.ingestFile(ctx, path, docID)
		if ingErr != nil {
			return ingErr
		}
		if ok {
			next++
			ingested++
		}
		return nil
	})
	if err != nil {
		return ingested, err
	}
	if s.logger != nil {
		s.logger.Info("knowledge base ingested",
			zap.String("dir", absDir), zap.Int("documents", ingested))
	}
	return ingested, nil
}

// IngestFile ingests a single file, first removing any documents previously
// ingested from the same path. Used by the watcher on file change events.
func (s *Service) IngestFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if !extensionAllowed(filepath.Ext(absPath), s.config.Extensions) {
		return fmt.Errorf("extension %q not in allowed list", filepath.Ext(absPath))
	}
	if err := s.DeleteBySource(ctx, absPath); err != nil {
		return err
	}
	count, err := s.storage.CountDocuments(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	_, err = s.ingestFile(ctx, absPath, fmt.Sprintf("doc_%d", count+1))
	return err
}

// ingestFile extracts, embeds, and stores one file under docID. Returns false
// (and no error) when the file was skipped.
func (s *Service) ingestFile(ctx context.Context, path, docID string) (bool, error) {
	text, err := s.extractText(path)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("extraction failed, skipping file",
				zap.String("path", path), zap.Error(err))
		}
		return false, nil
	}
	if strings.TrimSpace(text) == "" {
		if s.logger != nil {
			s.logger.Debug("empty document, skipping file", zap.String("path", path))
		}
		return false, nil
	}

	embedding, err := s.client.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed %s: %w", path, err)
	}

	doc := &models.Document{
		ID:      docID,
		Content: text,
		Metadata: map[string]string{
			models.MetaKeySource: path,
			models.MetaKeyType:   strings.ToLower(filepath.Ext(path)),
		},
	}
	if err := s.storage.CreateDocument(ctx, doc); err != nil {
		return false, fmt.Errorf("store document: %w", err)
	}
	if err := s.vectorIndex.Add(ctx, []string{docID}, [][]float32{embedding}); err != nil {
		return false, fmt.Errorf("index vector: %w", err)
	}
	if err := s.keywordIndex.Index(ctx, docID, doc); err != nil {
		return false, fmt.Errorf("index keywords: %w", err)
	}
	if s.logger != nil {
		s.logger.Debug("document ingested",
			zap.String("doc_id", docID), zap.String("path", path))
	}
	return true, nil
}

func (s *Service) extractText(path string) (string, error) {
	if s.extractor != nil {
		return s.extractor.Extract(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Search embeds the query and returns up to k passages ordered by ascending
// cosine distance. An empty index yields an empty slice, not an error.
func (s *Service) Search(ctx context.Context, query string, k int) ([]models.Passage, error) {
	k = s.clampK(k)
	if s.vectorIndex.Size() == 0 {
		return []models.Passage{}, nil
	}

	queryEmbedding, err := s.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.vectorIndex.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		doc, err := s.storage.GetDocument(ctx, r.ID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("indexed document missing from storage",
					zap.String("doc_id", r.ID), zap.Error(err))
			}
			continue
		}
		distance := r.Distance
		passages = append(passages, models.Passage{
			Content:  doc.Content,
			Metadata: doc.Metadata,
			Distance: &distance,
		})
	}
	return passages, nil
}

// KeywordSearch runs a keyword match over the Bleve index and returns the
// matching documents with their scores.
func (s *Service) KeywordSearch(ctx context.Context, query string, k int) ([]models.KeywordHit, error) {
	k = s.clampK(k)
	results, err := s.keywordIndex.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]models.KeywordHit, 0, len(results))
	for _, r := range results {
		doc, err := s.storage.GetDocument(ctx, r.ID)
		if err != nil {
			continue
		}
		hits = append(hits, models.KeywordHit{Document: doc, Score: r.Score})
	}
	return hits, nil
}

// DeleteBySource removes every document ingested from path, in storage and
// in both indices.
func (s *Service) DeleteBySource(ctx context.Context, path string) error {
	docs, err := s.storage.FindBySource(ctx, path)
	if err != nil {
		return fmt.Errorf("find by source: %w", err)
	}
	for _, doc := range docs {
		if err := s.storage.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
		if err := s.vectorIndex.Remove(ctx, []string{doc.ID}); err != nil {
			return fmt.Errorf("remove vector %s: %w", doc.ID, err)
		}
		if err := s.keywordIndex.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("remove keywords %s: %w", doc.ID, err)
		}
	}
	return nil
}

// CountDocuments reports the number of stored documents.
func (s *Service) CountDocuments(ctx context.Context) (int64, error) {
	return s.storage.CountDocuments(ctx)
}

// VectorIndexSize reports the number of indexed vectors.
func (s *Service) VectorIndexSize() int {
	return s.vectorIndex.Size()
}

func (s *Service) clampK(k int) int {
	if k <= 0 {
		k = s.config.DefaultK
	}
	if s.config.MaxK > 0 && k > s.config.MaxK {
		k = s.config.MaxK
	}
	return k
}

func extensionAllowed(ext string, allowed []string) bool {
	ext = strings.ToLower(ext)
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
