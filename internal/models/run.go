package models

// FileArtifact is a generated file (implementation or test) produced by an
// agent stage. Path is advisory until validated by the workspace sandbox
// check; the pipeline never trusts it as safe.
type FileArtifact struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Description string `json:"description"`
	// Source tags the originating stage ("developer" or "tester").
	// Set by the coordinator when artifacts are flattened for the workspace.
	Source string `json:"source,omitempty"`
}

// SpecComponent is one component of a Product Manager specification.
type SpecComponent struct {
	Component          string   `json:"component"`
	Description        string   `json:"description"`
	Requirements       []string `json:"requirements"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// Specification is the Product Manager's structured output.
type Specification struct {
	Analysis                string          `json:"analysis"`
	Components              []SpecComponent `json:"specifications"`
	TechnicalConsiderations []string        `json:"technical_considerations"`
	SuccessMetrics          []string        `json:"success_metrics"`
}

// Implementation is the Developer's structured output.
type Implementation struct {
	Plan          string         `json:"implementation_plan"`
	Files         []FileArtifact `json:"files"`
	Dependencies  []string       `json:"dependencies"`
	SetupCommands []string       `json:"setup_commands"`
	Notes         string         `json:"notes"`
}

// Issue is a single problem found during the Tester's review.
type Issue struct {
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Issue      string `json:"issue"`
	Suggestion string `json:"suggestion"`
}

// Review is the Tester's structured output.
type Review struct {
	Summary              string         `json:"review_summary"`
	Issues               []Issue        `json:"issues_found"`
	TestFiles            []FileArtifact `json:"test_files"`
	Recommendations      []string       `json:"recommendations"`
	QualityScore         string         `json:"quality_score"`
	RequirementsCoverage string         `json:"requirements_coverage"`
}

// AgentResult is the outcome of one agent stage. Exactly one of
// Specification, Implementation, or Review is set, matching the role.
// ParseError is non-empty only when every parser recovery path was
// exercised and a minimal fallback payload was synthesized; it never
// aborts the run.
type AgentResult struct {
	Agent          string          `json:"agent"`
	Role           string          `json:"role"`
	Specification  *Specification  `json:"specification,omitempty"`
	Implementation *Implementation `json:"implementation,omitempty"`
	Review         *Review         `json:"review,omitempty"`
	Raw            string          `json:"raw_response,omitempty"`
	ParseError     string          `json:"parse_error,omitempty"`
}

// AgentInfo identifies an agent that participated in a run.
type AgentInfo struct {
	Agent string `json:"agent"`
	Role  string `json:"role"`
}

// PipelineRun aggregates the three stage results of one generate_code
// invocation. It exists only for the lifetime of the call and is not
// persisted.
type PipelineRun struct {
	ID             string       `json:"id"`
	Instruction    string       `json:"instruction"`
	AgentsInvolved []AgentInfo  `json:"agents_involved"`
	ProductManager *AgentResult `json:"product_manager"`
	Developer      *AgentResult `json:"developer"`
	Tester         *AgentResult `json:"tester"`
}
