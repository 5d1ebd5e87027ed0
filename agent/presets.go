package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/fixflow/tools"
)

// Preset definitions for the three workflow steps. Each step agent reads the
// code through the sandboxed builtin tools and submits its finding through
// the exit tool; the exit payloads line up with the step result shapes the
// workflow engine expects.

// ClassifierDefinition builds the agent that decides whether the targeted
// fix branch applies to a problem.
func ClassifierDefinition(model string, sandbox *tools.Sandbox) *Definition {
	return &Definition{
		Name:  "classifier",
		Model: model,
		SystemPrompt: "You analyze build and test failures for generated SDK packages. " +
			"Inspect the code with the available tools, then decide whether the targeted " +
			"specification-level fix applies to the reported problem.",
		Tools: []*tools.Spec{
			tools.NewReadFileTool(sandbox),
			tools.NewSearchTool(sandbox),
		},
		ResultFields: []tools.FieldSpec{
			{Name: "applicable", Type: tools.FieldBoolean, Description: "Whether the targeted fix applies", Required: true},
			{Name: "detail", Type: tools.FieldString, Description: "Reasoning behind the decision"},
		},
	}
}

// FixerDefinition builds the agent that applies a fix and reports whether it
// was applied. The validator rejects an "applied" report with no summary, so
// the model has to say what it changed.
func FixerDefinition(model string, sandbox *tools.Sandbox, checkCommand string, checkArgs ...string) *Definition {
	return &Definition{
		Name:  "fixer",
		Model: model,
		SystemPrompt: "You fix problems in generated SDK packages. Use the tools to inspect " +
			"the code and check your work, then report whether the fix was applied.",
		Tools: []*tools.Spec{
			tools.NewReadFileTool(sandbox),
			tools.NewSearchTool(sandbox),
			tools.NewSyntaxCheckTool(sandbox, checkCommand, checkArgs...),
		},
		ResultFields: []tools.FieldSpec{
			{Name: "applied", Type: tools.FieldBoolean, Description: "Whether a fix was applied", Required: true},
			{Name: "summary", Type: tools.FieldString, Description: "What was changed"},
			{Name: "reason", Type: tools.FieldString, Description: "Why no fix was applied"},
		},
		Validate: func(_ context.Context, result json.RawMessage) error {
			var out struct {
				Applied bool   `json:"applied"`
				Summary string `json:"summary"`
			}
			if err := json.Unmarshal(result, &out); err != nil {
				return fmt.Errorf("result is not a JSON object: %w", err)
			}
			if out.Applied && out.Summary == "" {
				return fmt.Errorf("an applied fix needs a summary of what changed")
			}
			return nil
		},
	}
}

// VerifierDefinition builds the agent that checks whether an applied fix
// holds.
func VerifierDefinition(model string, sandbox *tools.Sandbox, checkCommand string, checkArgs ...string) *Definition {
	return &Definition{
		Name:  "verifier",
		Model: model,
		SystemPrompt: "You verify fixes in generated SDK packages. Run the syntax check and " +
			"inspect the code as needed, then report whether the fix holds.",
		Tools: []*tools.Spec{
			tools.NewReadFileTool(sandbox),
			tools.NewSyntaxCheckTool(sandbox, checkCommand, checkArgs...),
		},
		ResultFields: []tools.FieldSpec{
			{Name: "passed", Type: tools.FieldBoolean, Description: "Whether the checks pass", Required: true},
			{Name: "details", Type: tools.FieldString, Description: "Check output or failure details"},
		},
	}
}
