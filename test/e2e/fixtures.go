// Package e2e exercises the HTTP API against a full component stack.
package e2e

import (
	"os"
	"path/filepath"
)

// QueryCase is one keyword query with the source file expected among the hits.
type QueryCase struct {
	Description    string
	Query          string
	ExpectedSource string
}

// Corpus is a small knowledge base with query test cases against it.
type Corpus struct {
	Files map[string]string
	Cases []QueryCase
}

// BuildCorpus returns the fixture knowledge base used by the e2e tests.
func BuildCorpus() *Corpus {
	return &Corpus{
		Files: map[string]string{
			"auth.md": "Authentication uses bearer tokens issued by the login endpoint. " +
				"Tokens expire after twelve hours and must be refreshed.",
			"storage.md": "Documents are persisted in SQLite. Embeddings live in a separate " +
				"vector index that is saved to disk on shutdown.",
			"deploy.md": "Deployment runs on a single container. Configuration is read from " +
				"a YAML file and can be overridden per environment.",
		},
		Cases: []QueryCase{
			{
				Description:    "token query finds the auth doc",
				Query:          "bearer tokens",
				ExpectedSource: "auth.md",
			},
			{
				Description:    "persistence query finds the storage doc",
				Query:          "SQLite embeddings",
				ExpectedSource: "storage.md",
			},
			{
				Description:    "ops query finds the deploy doc",
				Query:          "container YAML configuration",
				ExpectedSource: "deploy.md",
			},
		},
	}
}

// WriteTo writes the corpus files into dir and returns their paths.
func (c *Corpus) WriteTo(dir string) ([]string, error) {
	paths := make([]string, 0, len(c.Files))
	for name, content := range c.Files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
