// Package workspace persists generated file artifacts under a sandbox root.
// No write is permitted outside the root, regardless of what paths the
// model proposed.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/models"
)

// WrittenFile reports one successfully persisted artifact.
type WrittenFile struct {
	Path        string `json:"path"`
	Bytes       int    `json:"bytes"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// Info describes the workspace directory contents.
type Info struct {
	Exists     bool        `json:"exists"`
	Files      []InfoEntry `json:"files"`
	TotalFiles int         `json:"total_files"`
	TotalSize  int64       `json:"total_size"`
	Root       string      `json:"workspace_path,omitempty"`
}

// InfoEntry is one file in the workspace listing.
type InfoEntry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

// Writer persists artifacts under a fixed sandbox root.
type Writer struct {
	root   string
	logger *zap.Logger // optional
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets a logger for write and skip events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer rooted at dir, creating it if needed. The root
// is resolved to an absolute, symlink-free path once so every subsequent
// containment check compares against the real location.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	w := &Writer{root: resolved}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the resolved sandbox root.
func (w *Writer) Root() string {
	return w.root
}

// Persist writes each artifact under the sandbox root, best-effort: an
// unsafe path or a failed write is logged and skipped without affecting the
// rest of the batch. Returns the successfully written subset.
func (w *Writer) Persist(files []models.FileArtifact) []WrittenFile {
	var written []WrittenFile
	for _, f := range files {
		target, ok := w.safePath(f.Path)
		if !ok {
			if w.logger != nil {
				w.logger.Warn("unsafe path, skipping", zap.String("path", f.Path))
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to create directories",
					zap.String("path", f.Path), zap.Error(err))
			}
			continue
		}
		if err := os.WriteFile(target, []byte(f.Content), 0644); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to write file",
					zap.String("path", f.Path), zap.Error(err))
			}
			continue
		}
		written = append(written, WrittenFile{
			Path:        target,
			Bytes:       len(f.Content),
			Source:      f.Source,
			Description: f.Description,
		})
		if w.logger != nil {
			w.logger.Info("wrote workspace file",
				zap.String("path", target), zap.Int("bytes", len(f.Content)))
		}
	}
	return written
}

// safePath resolves a proposed relative path and reports whether it stays
// inside the sandbox root. Traversal is checked on the resolved path, not
// by string prefix, so "..", backslash separators, and absolute paths are
// all rejected.
func (w *Writer) safePath(proposed string) (string, bool) {
	if proposed == "" {
		return "", false
	}
	// Model output may use either separator style.
	cleaned := filepath.FromSlash(strings.ReplaceAll(proposed, "\\", "/"))
	if filepath.IsAbs(cleaned) {
		return "", false
	}
	target := filepath.Join(w.root, cleaned)
	rel, err := filepath.Rel(w.root, target)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

// Stat returns a listing of the workspace contents.
func (w *Writer) Stat() (*Info, error) {
	if _, err := os.Stat(w.root); err != nil {
		if os.IsNotExist(err) {
			return &Info{Exists: false, Files: []InfoEntry{}}, nil
		}
		return nil, err
	}

	info := &Info{Exists: true, Files: []InfoEntry{}, Root: w.root}
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		info.Files = append(info.Files, InfoEntry{
			Path:     rel,
			Size:     fi.Size(),
			Modified: fi.ModTime().Unix(),
		})
		info.TotalSize += fi.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	info.TotalFiles = len(info.Files)
	return info, nil
}
