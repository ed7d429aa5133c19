// Package cli renders search and generation results for terminal output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/internal/workspace"
	"github.com/hyperjump/tsukuru/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a format string from a flag.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}

	switch response.Mode {
	case models.SearchModeKeyword:
		fmt.Fprintf(w, "\nFound %d keyword matches in %dms\n\n", len(response.KeywordHits), response.QueryTime)
		for i, hit := range response.KeywordHits {
			fmt.Fprintf(w, "─────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
			fmt.Fprintf(w, "ID: %s | Source: %s\n", hit.Document.ID, hit.Document.Metadata[models.MetaKeySource])
			fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Document.Content, 200))
		}
	default:
		fmt.Fprintf(w, "\nFound %d passages in %dms\n\n", len(response.Passages), response.QueryTime)
		for i, p := range response.Passages {
			fmt.Fprintf(w, "─────────────────────────────────────────────\n")
			if p.Distance != nil {
				fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", i+1, *p.Distance)
			} else {
				fmt.Fprintf(w, "Rank: %d\n", i+1)
			}
			fmt.Fprintf(w, "Source: %s\n", p.Metadata[models.MetaKeySource])
			fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(p.Content, 200))
		}
	}
	return nil
}

// GenerateResult is the CLI view of one pipeline run: the run itself plus
// the flattened artifacts and commands.
type GenerateResult struct {
	Run      *models.PipelineRun     `json:"run"`
	Files    []workspace.WrittenFile `json:"files"`
	Commands []string                `json:"commands"`
	Notes    string                  `json:"notes"`
	Applied  bool                    `json:"applied"`
}

// WriteGenerateResult writes a pipeline run summary to w in the given format.
func WriteGenerateResult(w io.Writer, result *GenerateResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(w, "\nRun %s\n", result.Run.ID)
	fmt.Fprintf(w, "Agents: ")
	for i, a := range result.Run.AgentsInvolved {
		if i > 0 {
			fmt.Fprint(w, " -> ")
		}
		fmt.Fprint(w, a.Agent)
	}
	fmt.Fprintln(w)

	action := "Proposed files"
	if result.Applied {
		action = "Written files"
	}
	fmt.Fprintf(w, "\n%s:\n", action)
	for _, f := range result.Files {
		fmt.Fprintf(w, "  %s (%d bytes, %s)\n", f.Path, f.Bytes, f.Source)
	}
	if len(result.Commands) > 0 {
		fmt.Fprintln(w, "\nSetup commands:")
		for _, c := range result.Commands {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
	if result.Notes != "" {
		fmt.Fprintf(w, "\nNotes: %s\n", result.Notes)
	}
	if review := result.Run.Tester; review != nil && review.Review != nil {
		fmt.Fprintf(w, "Quality score: %s\n", review.Review.QualityScore)
		for _, issue := range review.Review.Issues {
			fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Severity, issue.File, issue.Issue)
		}
	}
	return nil
}
