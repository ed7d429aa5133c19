package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/internal/workspace"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("empty format = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("json format = %v, %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	dist := 0.25
	resp := &models.SearchResponse{
		Query: "auth",
		Mode:  models.SearchModeVector,
		Passages: []models.Passage{{
			Content:  "bearer tokens are used",
			Metadata: map[string]string{models.MetaKeySource: "/kb/auth.md"},
			Distance: &dist,
		}},
		QueryTime: 3,
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 passages", "Distance: 0.2500", "/kb/auth.md", "bearer tokens"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	resp := &models.SearchResponse{Query: "x", Mode: models.SearchModeKeyword}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Mode != models.SearchModeKeyword {
		t.Errorf("mode = %q", decoded.Mode)
	}
}

func TestWriteGenerateResult_Text(t *testing.T) {
	result := &GenerateResult{
		Run: &models.PipelineRun{
			ID: "run-1",
			AgentsInvolved: []models.AgentInfo{
				{Agent: "ProductManager"}, {Agent: "Developer"}, {Agent: "Tester"},
			},
			Tester: &models.AgentResult{Review: &models.Review{QualityScore: "8"}},
		},
		Files:    []workspace.WrittenFile{{Path: "main.py", Bytes: 11, Source: "developer"}},
		Commands: []string{"python main.py"},
		Notes:    "ready",
		Applied:  true,
	}
	var buf bytes.Buffer
	if err := WriteGenerateResult(&buf, result, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "ProductManager -> Developer -> Tester", "Written files", "main.py", "python main.py", "Quality score: 8"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
