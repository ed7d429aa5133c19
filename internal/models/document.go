// Package models defines core data structures for documents, retrieved passages, and pipeline runs.
package models

import "time"

// Metadata keys stored with every ingested document.
const (
	MetaKeySource = "source"
	MetaKeyType   = "type"
)

// Document represents one ingested file with its extracted text.
// Documents are immutable once stored; the ID is assigned at ingestion time.
type Document struct {
	ID        string            `json:"id" db:"id"`
	Content   string            `json:"content" db:"content"`
	Metadata  map[string]string `json:"metadata" db:"metadata"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Passage is a unit of retrieved text: document content plus its metadata
// and the cosine distance to the query. Passages are ephemeral, produced
// per query and never persisted.
type Passage struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	// Distance is the cosine distance to the query (lower is closer).
	// Nil when the retrieval path does not score by distance (keyword mode).
	Distance *float64 `json:"distance"`
}
