// Package pipeline sequences the Product Manager, Developer, and Tester
// agents over one instruction and aggregates their artifacts.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/agent"
	"github.com/hyperjump/tsukuru/internal/models"
)

// Stage source tags on flattened file artifacts.
const (
	SourceDeveloper = "developer"
	SourceTester    = "tester"
)

// Retriever is the slice of the retrieval service the coordinator needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// Coordinator runs the three-stage agent pipeline. Stages execute strictly
// in order; each stage's prompt depends on the previous stage's output, so
// there is no fan-out and no retry between stages.
type Coordinator struct {
	retriever      Retriever
	productManager *agent.Agent
	developer      *agent.Agent
	tester         *agent.Agent
	searchK        int
	logger         *zap.Logger // optional
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for per-run progress output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator over the given retriever and agents.
// searchK is the passage count requested for each run; the service default
// applies when it is zero.
func NewCoordinator(retriever Retriever, pm, dev, tester *agent.Agent, searchK int, opts ...Option) *Coordinator {
	c := &Coordinator{
		retriever:      retriever,
		productManager: pm,
		developer:      dev,
		tester:         tester,
		searchK:        searchK,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateCode runs the full pipeline for one instruction. The knowledge
// base is queried once up front; the same passages feed both the Product
// Manager and the Developer. A backend failure at any stage aborts the run
// and propagates; parse degradation never does.
func (c *Coordinator) GenerateCode(ctx context.Context, instruction string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID:          uuid.New().String(),
		Instruction: instruction,
	}
	if c.logger != nil {
		c.logger.Info("pipeline run started",
			zap.String("run_id", run.ID), zap.String("instruction", instruction))
	}

	passages, err := c.retriever.Search(ctx, instruction, c.searchK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	runCtx := &agent.Context{
		Instruction: instruction,
		Passages:    passages,
	}

	pmResult, err := c.runStage(ctx, c.productManager, runCtx, run)
	if err != nil {
		return nil, err
	}
	run.ProductManager = pmResult
	runCtx.Specification = pmResult.Specification

	devResult, err := c.runStage(ctx, c.developer, runCtx, run)
	if err != nil {
		return nil, err
	}
	run.Developer = devResult
	runCtx.Implementation = devResult.Implementation

	testResult, err := c.runStage(ctx, c.tester, runCtx, run)
	if err != nil {
		return nil, err
	}
	run.Tester = testResult

	if c.logger != nil {
		c.logger.Info("pipeline run complete", zap.String("run_id", run.ID))
	}
	return run, nil
}

func (c *Coordinator) runStage(ctx context.Context, a *agent.Agent, runCtx *agent.Context, run *models.PipelineRun) (*models.AgentResult, error) {
	result, err := a.Run(ctx, runCtx)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.AgentsInvolved = append(run.AgentsInvolved, models.AgentInfo{
		Agent: result.Agent,
		Role:  result.Role,
	})
	if c.logger != nil && result.ParseError != "" {
		c.logger.Warn("agent response degraded to fallback",
			zap.String("run_id", run.ID),
			zap.String("agent", result.Agent),
			zap.String("parse_error", result.ParseError))
	}
	return result, nil
}

// FilesForWorkspace flattens the run's artifacts for the workspace writer:
// the Developer's files first, then the Tester's test files, each tagged
// with its originating stage.
func FilesForWorkspace(run *models.PipelineRun) []models.FileArtifact {
	var files []models.FileArtifact
	if run.Developer != nil && run.Developer.Implementation != nil {
		for _, f := range run.Developer.Implementation.Files {
			f.Source = SourceDeveloper
			files = append(files, f)
		}
	}
	if run.Tester != nil && run.Tester.Review != nil {
		for _, f := range run.Tester.Review.TestFiles {
			f.Source = SourceTester
			files = append(files, f)
		}
	}
	return files
}

// SetupCommands returns the Developer's declared setup commands verbatim,
// in order, without deduplication.
func SetupCommands(run *models.PipelineRun) []string {
	if run.Developer == nil || run.Developer.Implementation == nil {
		return nil
	}
	return run.Developer.Implementation.SetupCommands
}

// Notes joins each stage's headline remark for the response payload.
func Notes(run *models.PipelineRun) string {
	var parts []string
	if run.ProductManager != nil && run.ProductManager.Specification != nil && run.ProductManager.Specification.Analysis != "" {
		parts = append(parts, "PM Analysis: "+run.ProductManager.Specification.Analysis)
	}
	if run.Developer != nil && run.Developer.Implementation != nil && run.Developer.Implementation.Notes != "" {
		parts = append(parts, "Dev Notes: "+run.Developer.Implementation.Notes)
	}
	if run.Tester != nil && run.Tester.Review != nil && run.Tester.Review.Summary != "" {
		parts = append(parts, "QA Review: "+run.Tester.Review.Summary)
	}
	if len(parts) == 0 {
		return "Multi-agent code generation completed successfully"
	}
	return strings.Join(parts, " | ")
}
