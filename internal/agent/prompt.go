package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/tsukuru/internal/models"
	"github.com/hyperjump/tsukuru/pkg/utils"
)

// Prompt size budgets. Passage bodies and file listings are truncated so a
// long knowledge base or a verbose Developer stage cannot blow the context
// window of the inference backend.
const (
	maxPassagesPM    = 3
	maxPassagesDev   = 3
	maxFilesTester   = 5
	passageBudgetPM  = 500
	passageBudgetDev = 800
	fileBudgetTester = 1500
)

// buildPrompt composes the role-specific user prompt from the run context.
func buildPrompt(role Role, c *Context) string {
	switch role {
	case ProductManager:
		return buildProductManagerPrompt(c)
	case Developer:
		return buildDeveloperPrompt(c)
	case Tester:
		return buildTesterPrompt(c)
	default:
		return c.Instruction
	}
}

func buildProductManagerPrompt(c *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Instruction: %s\n\n", c.Instruction)

	if len(c.Passages) > 0 {
		b.WriteString("Relevant Context from Knowledge Base:\n")
		for i, p := range c.Passages {
			if i >= maxPassagesPM {
				break
			}
			fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, utils.Truncate(p.Content, passageBudgetPM))
		}
	}

	b.WriteString("Please analyze the user instruction and create detailed technical specifications. " +
		"Consider the context provided and break down the requirements into specific, implementable components.")
	return b.String()
}

func buildDeveloperPrompt(c *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original User Instruction: %s\n\n", c.Instruction)
	fmt.Fprintf(&b, "Product Manager Specifications:\n%s\n\n", marshalIndent(c.Specification))

	if len(c.Passages) > 0 {
		b.WriteString("Relevant Code Examples and Documentation from Knowledge Base:\n")
		for i, p := range c.Passages {
			if i >= maxPassagesDev {
				break
			}
			source := p.Metadata[models.MetaKeySource]
			if source == "" {
				source = "unknown"
			}
			fmt.Fprintf(&b, "Context %d (%s):\n%s\n\n", i+1, source, utils.Truncate(p.Content, passageBudgetDev))
		}
	}

	b.WriteString("Please implement the code based on the specifications provided. " +
		"Generate complete, functional files that fulfill all the requirements. " +
		"Make sure to include proper error handling, documentation, and follow best practices.")
	return b.String()
}

func buildTesterPrompt(c *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original User Instruction: %s\n\n", c.Instruction)
	fmt.Fprintf(&b, "Product Manager Specifications:\n%s\n\n", marshalIndent(c.Specification))
	b.WriteString("Generated Code to Review:\n")

	impl := c.Implementation
	if impl == nil {
		impl = &models.Implementation{}
	}
	for i, f := range impl.Files {
		if i >= maxFilesTester {
			break
		}
		description := f.Description
		if description == "" {
			description = "No description"
		}
		fmt.Fprintf(&b, "\nFile: %s\n", f.Path)
		fmt.Fprintf(&b, "Description: %s\n", description)
		fmt.Fprintf(&b, "Content:\n%s\n", utils.Truncate(f.Content, fileBudgetTester))
		b.WriteString(strings.Repeat("=", 50) + "\n")
	}

	notes := impl.Notes
	if notes == "" {
		notes = "None"
	}
	fmt.Fprintf(&b, "\nDependencies: %v\n", impl.Dependencies)
	fmt.Fprintf(&b, "Setup Commands: %v\n", impl.SetupCommands)
	fmt.Fprintf(&b, "Implementation Notes: %s\n", notes)

	b.WriteString(`
Please review this code thoroughly and create comprehensive tests. Focus on:
1. Code quality and potential bugs
2. Security considerations
3. Performance issues
4. Test coverage for all functionality
5. Compliance with original requirements`)
	return b.String()
}

func marshalIndent(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
