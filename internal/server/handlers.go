package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/config"
	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/internal/pipeline"
	"github.com/hyperjump/tsukuru/internal/retrieval"
	"github.com/hyperjump/tsukuru/internal/workspace"
	"github.com/hyperjump/tsukuru/pkg/utils"
)

type ingestRequest struct {
	Path string `json:"path"`
}

type ingestResponse struct {
	Message        string `json:"message"`
	FilesProcessed int    `json:"files_processed"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Info("ingest request", zap.String("path", req.Path))

	n, err := s.retrieval.Ingest(r.Context(), req.Path)
	if err != nil {
		if errors.Is(err, retrieval.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ingestResponse{
		Message:        fmt.Sprintf("ingested %d documents from %s", n, req.Path),
		FilesProcessed: n,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = models.SearchModeVector
	}
	s.logger.Debug("search request",
		zap.String("query", req.Query), zap.String("mode", mode), zap.Int("limit", req.Limit))

	start := time.Now()
	resp := models.SearchResponse{Query: req.Query, Mode: mode}
	switch mode {
	case models.SearchModeVector:
		passages, err := s.retrieval.Search(r.Context(), req.Query, req.Limit)
		if err != nil {
			s.logger.Error("search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Passages = passages
	case models.SearchModeKeyword:
		hits, err := s.retrieval.KeywordSearch(r.Context(), req.Query, req.Limit)
		if err != nil {
			s.logger.Error("keyword search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.KeywordHits = hits
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown search mode %q", mode))
		return
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	Question string `json:"question"`
}

type askSource struct {
	Content  string   `json:"content"`
	Source   string   `json:"source"`
	Distance *float64 `json:"distance,omitempty"`
}

type askResponse struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Sources  []askSource `json:"sources"`
}

// askPassageCount and the excerpt budgets mirror the prompt budgets used by
// the pipeline agents.
const (
	askPassageCount  = 3
	askContextBudget = 500
	askSourceBudget  = 200
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}

	passages, err := s.retrieval.Search(r.Context(), req.Question, askPassageCount)
	if err != nil {
		s.logger.Error("ask retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	excerpts := make([]string, 0, len(passages))
	sources := make([]askSource, 0, len(passages))
	for _, p := range passages {
		excerpts = append(excerpts, utils.Truncate(p.Content, askContextBudget))
		sources = append(sources, askSource{
			Content:  utils.Truncate(p.Content, askSourceBudget),
			Source:   p.Metadata[models.MetaKeySource],
			Distance: p.Distance,
		})
	}

	prompt := fmt.Sprintf(`Based on the following context from the knowledge base, please answer the user's question.

Context:
%s

Question: %s

Please provide a helpful and accurate answer based on the context provided.`,
		strings.Join(excerpts, "\n\n"), req.Question)

	answer, err := s.client.GenerateText(r.Context(), "", prompt)
	if err != nil {
		s.logger.Error("ask generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, askResponse{
		Question: req.Question,
		Answer:   answer,
		Sources:  sources,
	})
}

type generateRequest struct {
	Instruction string `json:"instruction"`
	Apply       bool   `json:"apply"`
}

type generateResponse struct {
	Instruction    string                  `json:"instruction"`
	Applied        bool                    `json:"applied"`
	RunID          string                  `json:"run_id"`
	AgentsInvolved []models.AgentInfo      `json:"agents_involved"`
	Files          []workspace.WrittenFile `json:"files"`
	Commands       []string                `json:"commands"`
	Notes          string                  `json:"notes"`
	ProductManager *models.AgentResult     `json:"product_manager,omitempty"`
	Developer      *models.AgentResult     `json:"developer,omitempty"`
	Tester         *models.AgentResult     `json:"tester,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Instruction == "" {
		s.respondError(w, http.StatusBadRequest, "instruction is required")
		return
	}
	s.logger.Info("generate request",
		zap.String("instruction", req.Instruction), zap.Bool("apply", req.Apply))

	run, err := s.coordinator.GenerateCode(r.Context(), req.Instruction)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	artifacts := pipeline.FilesForWorkspace(run)
	var files []workspace.WrittenFile
	if req.Apply {
		files = s.writer.Persist(artifacts)
	} else {
		// Preview only: report what would be written, without touching disk.
		for _, f := range artifacts {
			files = append(files, workspace.WrittenFile{
				Path:        filepath.Join("workspace", f.Path),
				Bytes:       len(f.Content),
				Source:      f.Source,
				Description: f.Description,
			})
		}
	}

	s.respondJSON(w, http.StatusOK, generateResponse{
		Instruction:    req.Instruction,
		Applied:        req.Apply,
		RunID:          run.ID,
		AgentsInvolved: run.AgentsInvolved,
		Files:          files,
		Commands:       pipeline.SetupCommands(run),
		Notes:          pipeline.Notes(run),
		ProductManager: run.ProductManager,
		Developer:      run.Developer,
		Tester:         run.Tester,
	})
}

func (s *Server) handleWorkspaceInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.writer.Stat()
	if err != nil {
		s.logger.Error("workspace info failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docCount, err := s.retrieval.CountDocuments(r.Context())
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":         docCount,
		"vector_index_size": s.retrieval.VectorIndexSize(),
		"agents":            []string{"ProductManager", "Developer", "Tester"},
		"config": map[string]interface{}{
			"llm_model":            s.config.Ollama.LLMModel,
			"embedding_model":      s.config.Ollama.EmbeddingModel,
			"embedding_dimensions": s.config.Ollama.EmbeddingDimensions,
			"workspace_dir":        s.config.Workspace.Dir,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	ingestExisting := true
	if req.Sync != nil {
		ingestExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, ingestExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories saves the current watch list back to the config
// file so it survives restarts.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
