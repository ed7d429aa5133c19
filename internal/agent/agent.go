package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tsukuru/internal/llm"
	"github.com/hyperjump/tsukuru/internal/models"
)

// Agent is one role-bound prompt/parse unit. It is immutable after
// construction; all run state lives in the Context passed to Run.
type Agent struct {
	role   Role
	client llm.Client
	logger *zap.Logger // optional
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets a logger for per-stage debug output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates an agent for the given role backed by client.
func New(role Role, client llm.Client, opts ...Option) *Agent {
	a := &Agent{role: role, client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Role returns the agent's role.
func (a *Agent) Role() Role {
	return a.role
}

// Run composes the role prompt from c, makes one inference call, and parses
// the response. A backend failure is returned as an error; a parse failure
// is absorbed into a fallback payload with ParseError set on the result.
func (a *Agent) Run(ctx context.Context, c *Context) (*models.AgentResult, error) {
	prompt := buildPrompt(a.role, c)

	raw, err := a.client.GenerateText(ctx, a.role.SystemPrompt(), prompt)
	if err != nil {
		return nil, fmt.Errorf("%s inference call: %w", a.role.Name(), err)
	}

	result := &models.AgentResult{
		Agent: a.role.Name(),
		Role:  a.role.Title(),
		Raw:   raw,
	}
	switch a.role {
	case ProductManager:
		result.Specification, result.ParseError = parseSpecification(raw, c.Instruction)
	case Developer:
		result.Implementation, result.ParseError = parseImplementation(raw, c.Instruction)
	case Tester:
		result.Review, result.ParseError = parseReview(raw, c.Implementation)
	}

	if a.logger != nil {
		a.logger.Debug("agent stage complete",
			zap.String("agent", result.Agent),
			zap.Int("response_bytes", len(raw)),
			zap.String("parse_error", result.ParseError))
	}
	return result, nil
}
