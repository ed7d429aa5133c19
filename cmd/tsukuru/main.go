// Package main is the Tsukuru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/agent"
	"github.com/hyperjump/tsukuru/internal/cli"
	"github.com/hyperjump/tsukuru/internal/config"
	"github.com/hyperjump/tsukuru/internal/extract"
	"github.com/hyperjump/tsukuru/internal/keyword"
	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/internal/pipeline"
	"github.com/hyperjump/tsukuru/internal/retrieval"
	"github.com/hyperjump/tsukuru/internal/server"
	"github.com/hyperjump/tsukuru/internal/storage"
	"github.com/hyperjump/tsukuru/internal/vector"
	"github.com/hyperjump/tsukuru/internal/watcher"
	"github.com/hyperjump/tsukuru/internal/workspace"
	"github.com/hyperjump/tsukuru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tsukuru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "tsukuru server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "generate":
		runGenerate()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("tsukuru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (agent prompts, ingest progress, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	svc := components.Retrieval
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Retrieval.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if err := svc.IngestFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := svc.DeleteBySource(context.Background(), path); err != nil {
				logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.IngestExistingFiles()

	srv := server.NewServer(
		components.Retrieval,
		components.Coordinator,
		components.Writer,
		components.Client,
		cfg,
		logger,
	)
	srv.SetWatcher(watchSvc, resolvedConfigPath)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" && components.VectorIndex != nil {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: tsukuru ingest [flags] <directory>")
		os.Exit(1)
	}
	dir := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	n, err := components.Retrieval.Ingest(context.Background(), dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	fmt.Printf("Ingested %d document(s) from %s\n", n, dir)
}

// buildQuery joins all positional args with spaces so multi-word queries and
// instructions work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front of the slice so that flag.Parse() sees
// them. Go's flag package stops at the first non-flag argument, so
// "tsukuru search \"query\" -limit 5" would otherwise leave -limit unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	mode := fs.String("mode", models.SearchModeVector, "search mode: vector or keyword")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: tsukuru search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	request := &models.SearchRequest{Query: query, Limit: *limit, Mode: *mode}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a Bleve/SQLite
		// lock conflict with the server process).
		response, err := searchViaHTTP(*serverURL, request)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, logger := directComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	start := time.Now()
	response := &models.SearchResponse{Query: query, Mode: *mode}
	switch *mode {
	case models.SearchModeKeyword:
		hits, err := components.Retrieval.KeywordSearch(ctx, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response.KeywordHits = hits
	case models.SearchModeVector:
		passages, err := components.Retrieval.Search(ctx, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response.Passages = passages
	default:
		fmt.Fprintf(os.Stderr, "Unknown search mode %q; use vector or keyword\n", *mode)
		os.Exit(1)
	}
	response.QueryTime = time.Since(start).Milliseconds()

	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, request *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// askReply is the shape of the POST /api/v1/ask response.
type askReply struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Sources  []struct {
		Content  string   `json:"content"`
		Source   string   `json:"source"`
		Distance *float64 `json:"distance,omitempty"`
	} `json:"sources"`
}

func runAsk() {
	askArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: tsukuru ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]string{"question": question})
	resp, err := http.Post(*serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Ask failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var reply askReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reply)
		return
	}
	fmt.Printf("\n%s\n", reply.Answer)
	if len(reply.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range reply.Sources {
			fmt.Printf("  %s\n", src.Source)
		}
	}
}

// generateReply is the shape of the POST /api/v1/generate response.
type generateReply struct {
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

func runGenerate() {
	genArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run the pipeline in-process)")
	apply := fs.Bool("apply", false, "write generated files into the workspace")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(genArgs)

	instruction := buildQuery(fs.Args())
	if instruction == "" {
		fmt.Println("Usage: tsukuru generate [flags] <instruction>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		reply, err := generateViaHTTP(*serverURL, instruction, *apply)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generate failed: %v\n", err)
			os.Exit(1)
		}
		result := &cli.GenerateResult{
			Run: &models.PipelineRun{
				ID:             reply.RunID,
				Instruction:    reply.Instruction,
				AgentsInvolved: reply.AgentsInvolved,
				ProductManager: reply.ProductManager,
				Developer:      reply.Developer,
				Tester:         reply.Tester,
			},
			Files:    reply.Files,
			Commands: reply.Commands,
			Notes:    reply.Notes,
			Applied:  reply.Applied,
		}
		if err := cli.WriteGenerateResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, logger := directComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	run, err := components.Coordinator.GenerateCode(context.Background(), instruction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generate failed: %v\n", err)
		os.Exit(1)
	}
	artifacts := pipeline.FilesForWorkspace(run)
	var files []workspace.WrittenFile
	if *apply {
		files = components.Writer.Persist(artifacts)
	} else {
		for _, f := range artifacts {
			files = append(files, workspace.WrittenFile{
				Path:        filepath.Join("workspace", f.Path),
				Bytes:       len(f.Content),
				Source:      f.Source,
				Description: f.Description,
			})
		}
	}
	result := &cli.GenerateResult{
		Run:      run,
		Files:    files,
		Commands: pipeline.SetupCommands(run),
		Notes:    pipeline.Notes(run),
		Applied:  *apply,
	}
	if err := cli.WriteGenerateResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func generateViaHTTP(serverURL, instruction string, apply bool) (*generateReply, error) {
	body, err := json.Marshal(map[string]interface{}{"instruction": instruction, "apply": apply})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var reply generateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &reply, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, logger := directComponents(*configPath)
		defer logger.Sync()
		defer components.Close()
		docCount, err := components.Retrieval.CountDocuments(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"documents":         docCount,
			"vector_index_size": components.Retrieval.VectorIndexSize(),
			"agents":            []string{"ProductManager", "Developer", "Tester"},
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:          %v\n", status["documents"])
		fmt.Printf("vector_index_size:  %v\n", status["vector_index_size"])
		if agents, ok := status["agents"].([]interface{}); ok {
			names := make([]string, 0, len(agents))
			for _, a := range agents {
				names = append(names, fmt.Sprint(a))
			}
			fmt.Printf("agents:             %s\n", strings.Join(names, ", "))
		} else if agents, ok := status["agents"].([]string); ok {
			fmt.Printf("agents:             %s\n", strings.Join(agents, ", "))
		}
		if cfgMap, ok := status["config"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"llm_model", "embedding_model", "embedding_dimensions", "workspace_dir"} {
				if v, ok := cfgMap[key]; ok {
					fmt.Printf("%-20s%v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tsukuru watch <add|remove|list> [path]")
		fmt.Println("  tsukuru watch add <path>     Add knowledge directory to watch")
		fmt.Println("  tsukuru watch remove <path>  Remove directory from watch")
		fmt.Println("  tsukuru watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: tsukuru watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: tsukuru watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// directComponents loads config and initializes the full component stack for
// subcommands that run without a server. Exits the process on failure.
func directComponents(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return components, logger
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Client       llm.Client
	VectorIndex  vector.Index
	KeywordIndex keyword.Index
	Retrieval    *retrieval.Service
	Coordinator  *pipeline.Coordinator
	Writer       *workspace.Writer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Client != nil {
		_ = c.Client.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ollama := llm.NewOllamaClient(llm.OllamaConfig{
		Host:           cfg.Ollama.Host,
		LLMModel:       cfg.Ollama.LLMModel,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		Dimensions:     cfg.Ollama.EmbeddingDimensions,
		Timeout:        time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := ollama.Ping(pingCtx); err != nil && logger != nil {
		logger.Warn("ollama backend not reachable; generation and search will fail until it is up",
			zap.String("host", cfg.Ollama.Host), zap.Error(err))
	}
	pingCancel()
	client := llm.NewCachedClient(ollama, llm.DefaultEmbedCacheSize)

	vectorIndex, err := vector.NewMemoryIndex(cfg.Ollama.EmbeddingDimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil && logger != nil {
			logger.Warn("vector index load skipped (re-ingest to rebuild)",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	svcOpts := []retrieval.Option{}
	agentOpts := []agent.Option{}
	coordOpts := []pipeline.Option{}
	wsOpts := []workspace.Option{}
	if debug && logger != nil {
		svcOpts = append(svcOpts, retrieval.WithLogger(logger))
		agentOpts = append(agentOpts, agent.WithLogger(logger))
		coordOpts = append(coordOpts, pipeline.WithLogger(logger))
		wsOpts = append(wsOpts, workspace.WithLogger(logger))
	}

	svc := retrieval.NewService(store, client, vectorIndex, keywordIndex, &cfg.Retrieval, extract.NewExtractor(), svcOpts...)
	coordinator := pipeline.NewCoordinator(
		svc,
		agent.New(agent.ProductManager, client, agentOpts...),
		agent.New(agent.Developer, client, agentOpts...),
		agent.New(agent.Tester, client, agentOpts...),
		cfg.Retrieval.DefaultK,
		coordOpts...,
	)
	writer, err := workspace.NewWriter(cfg.Workspace.Dir, wsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workspace: %w", err)
	}

	return &Components{
		Storage:      store,
		Client:       client,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Retrieval:    svc,
		Coordinator:  coordinator,
		Writer:       writer,
	}, nil
}

func printUsage() {
	fmt.Println(`tsukuru - Retrieval-augmented multi-agent code generation

Usage:
  tsukuru server [flags]               Start the HTTP server
  tsukuru ingest [flags] <dir>         Ingest a knowledge directory
  tsukuru search [flags] <query>       Search the knowledge base
  tsukuru ask [flags] <question>       Ask a question grounded in the knowledge base
  tsukuru generate [flags] <text>      Run the PM -> Developer -> Tester pipeline
  tsukuru status [flags]               Show document/index/agent status
  tsukuru watch <add|remove|list>      Manage watched knowledge directories
  tsukuru version                      Show version
  tsukuru help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tsukuru/config.yaml)
  --debug            Enable debug logging (agent prompts, ingest progress, etc.)

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int        Number of results (default: config default_k)
  --mode string      Search mode: vector (semantic) or keyword (default: vector)
  --output string    Output format: text or json (default: text)

Generate Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --apply            Write generated files into the workspace (default: preview only)
  --output string    Output format: text or json (default: text)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  tsukuru server
  tsukuru ingest ./knowledge
  tsukuru search "authentication flow"
  tsukuru search --mode keyword "bearer token"
  tsukuru ask "what storage backend does the service use?"
  tsukuru generate "build a REST API for a todo list"
  tsukuru generate --apply "add a health endpoint"
  tsukuru status --output json
  tsukuru watch add ./knowledge
  tsukuru watch list`)
}
