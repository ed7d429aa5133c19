package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/tsukuru/internal/agent"
	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/models"
)

type stubRetriever struct {
	passages []models.Passage
	err      error
	queries  []string
}

func (s *stubRetriever) Search(ctx context.Context, query string, k int) ([]models.Passage, error) {
	s.queries = append(s.queries, query)
	return s.passages, s.err
}

const (
	pmResponse = `{"analysis": "needs one endpoint", "specifications": [{"component": "Health"}], "technical_considerations": [], "success_metrics": []}`

	devResponse = `{"implementation_plan": "single file", "files": [{"path": "main.py", "content": "print('ok')", "description": "entry"}, {"path": "util.py", "content": "x = 1", "description": "helper"}], "dependencies": [], "setup_commands": ["pip install flask", "python main.py"], "notes": "ready"}`

	testResponse = `{"review_summary": "solid", "issues_found": [], "test_files": [{"path": "test_main.py", "content": "assert True", "description": "smoke"}], "recommendations": [], "quality_score": "8", "requirements_coverage": "full"}`
)

func newCoordinator(client *llm.MockClient, retriever Retriever) *Coordinator {
	return NewCoordinator(
		retriever,
		agent.New(agent.ProductManager, client),
		agent.New(agent.Developer, client),
		agent.New(agent.Tester, client),
		3,
	)
}

func TestCoordinator_GenerateCode(t *testing.T) {
	client := llm.NewMockClient(32, pmResponse, devResponse, testResponse)
	retriever := &stubRetriever{passages: []models.Passage{{Content: "endpoints return JSON"}}}
	c := newCoordinator(client, retriever)

	run, err := c.GenerateCode(context.Background(), "add a health endpoint")
	if err != nil {
		t.Fatal(err)
	}

	if len(run.AgentsInvolved) != 3 {
		t.Fatalf("agents involved = %d, want 3", len(run.AgentsInvolved))
	}
	wantOrder := []string{"ProductManager", "Developer", "Tester"}
	for i, info := range run.AgentsInvolved {
		if info.Agent != wantOrder[i] {
			t.Errorf("stage %d = %s, want %s", i, info.Agent, wantOrder[i])
		}
	}
	if run.ID == "" {
		t.Error("run id not assigned")
	}

	// Retrieval happens exactly once, before the first stage.
	if len(retriever.queries) != 1 || retriever.queries[0] != "add a health endpoint" {
		t.Errorf("queries = %v", retriever.queries)
	}

	// The Developer prompt carries the PM's specification, and the Tester
	// prompt carries the Developer's files.
	if !strings.Contains(client.Prompts[1], "needs one endpoint") {
		t.Error("developer prompt missing PM output")
	}
	if !strings.Contains(client.Prompts[2], "File: main.py") {
		t.Error("tester prompt missing developer files")
	}
	// Both PM and Developer see the same retrieved passages.
	for _, i := range []int{0, 1} {
		if !strings.Contains(client.Prompts[i], "endpoints return JSON") {
			t.Errorf("prompt %d missing retrieved passage", i)
		}
	}
}

// failAfterClient succeeds until the scripted responses run out, then errors.
type failAfterClient struct {
	*llm.MockClient
	remaining int
	calls     int
}

func (f *failAfterClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.calls > f.remaining {
		return "", errors.New("backend down")
	}
	return f.MockClient.GenerateText(ctx, systemPrompt, userPrompt)
}

func TestCoordinator_DeveloperFailureStopsPipeline(t *testing.T) {
	client := &failAfterClient{MockClient: llm.NewMockClient(32, pmResponse), remaining: 1}
	c := NewCoordinator(
		&stubRetriever{},
		agent.New(agent.ProductManager, client),
		agent.New(agent.Developer, client),
		agent.New(agent.Tester, client),
		3,
	)

	_, err := c.GenerateCode(context.Background(), "x")
	if err == nil {
		t.Fatal("expected developer backend error to propagate")
	}
	// PM ran, Developer failed, Tester never ran.
	if client.calls != 2 {
		t.Errorf("inference calls = %d, want 2", client.calls)
	}
}

func TestCoordinator_RetrievalFailurePropagates(t *testing.T) {
	client := llm.NewMockClient(32, pmResponse, devResponse, testResponse)
	c := newCoordinator(client, &stubRetriever{err: errors.New("index offline")})

	if _, err := c.GenerateCode(context.Background(), "x"); err == nil {
		t.Fatal("expected retrieval error to propagate")
	}
	if len(client.Prompts) != 0 {
		t.Error("no agent should run when retrieval fails")
	}
}

func TestFilesForWorkspace(t *testing.T) {
	run := &models.PipelineRun{
		Developer: &models.AgentResult{Implementation: &models.Implementation{
			Files: []models.FileArtifact{
				{Path: "main.py", Content: "a"},
				{Path: "util.py", Content: "b"},
			},
		}},
		Tester: &models.AgentResult{Review: &models.Review{
			TestFiles: []models.FileArtifact{{Path: "test_main.py", Content: "c"}},
		}},
	}

	files := FilesForWorkspace(run)
	if len(files) != 3 {
		t.Fatalf("files = %d, want 3", len(files))
	}
	if files[0].Path != "main.py" || files[1].Path != "util.py" || files[2].Path != "test_main.py" {
		t.Errorf("order = %s, %s, %s", files[0].Path, files[1].Path, files[2].Path)
	}
	if files[0].Source != SourceDeveloper || files[2].Source != SourceTester {
		t.Errorf("sources = %s, %s", files[0].Source, files[2].Source)
	}
}

func TestFilesForWorkspace_PartialRun(t *testing.T) {
	if got := FilesForWorkspace(&models.PipelineRun{}); len(got) != 0 {
		t.Errorf("files = %d, want 0", len(got))
	}
}

func TestSetupCommands(t *testing.T) {
	run := &models.PipelineRun{
		Developer: &models.AgentResult{Implementation: &models.Implementation{
			SetupCommands: []string{"pip install flask", "pip install flask", "python main.py"},
		}},
	}
	got := SetupCommands(run)
	// Verbatim, ordered, no deduplication.
	if len(got) != 3 || got[0] != got[1] {
		t.Errorf("commands = %v", got)
	}
	if SetupCommands(&models.PipelineRun{}) != nil {
		t.Error("expected nil commands for empty run")
	}
}

func TestNotes(t *testing.T) {
	run := &models.PipelineRun{
		ProductManager: &models.AgentResult{Specification: &models.Specification{Analysis: "one endpoint"}},
		Developer:      &models.AgentResult{Implementation: &models.Implementation{Notes: "ready"}},
		Tester:         &models.AgentResult{Review: &models.Review{Summary: "solid"}},
	}
	got := Notes(run)
	want := "PM Analysis: one endpoint | Dev Notes: ready | QA Review: solid"
	if got != want {
		t.Errorf("notes = %q, want %q", got, want)
	}
	if Notes(&models.PipelineRun{}) == "" {
		t.Error("expected default notes for empty run")
	}
}
