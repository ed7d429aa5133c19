package agent

import "github.com/hyperjump/tsukuru/internal/models"

// Context carries the accumulated state of one pipeline run. The coordinator
// owns it and fills fields in as stages complete; agents only read from it.
type Context struct {
	// Instruction is the original user request. Set before any stage runs.
	Instruction string

	// Passages is the retrieval result for the instruction, queried once and
	// reused by the Product Manager and Developer stages.
	Passages []models.Passage

	// Specification is the Product Manager's output. Nil until PM_RUN completes.
	Specification *models.Specification

	// Implementation is the Developer's output. Nil until DEV_RUN completes.
	Implementation *models.Implementation
}
