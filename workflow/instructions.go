package workflow

import (
	"encoding/json"
	"fmt"
)

// instructionFor renders the next-step instruction for a live workflow.
func instructionFor(state *State) string {
	switch state.Phase {
	case PhaseClassify:
		return fmt.Sprintf(
			"Classify the following problem against the code in %s and decide whether a targeted specification-level fix applies.\n\nProblem:\n%s",
			state.Entry.PackagePath, state.ErrorContext)

	case PhaseFixSpec:
		return fmt.Sprintf(
			"Apply the targeted specification-level fix for the problem below in %s, then report whether it was applied. If it turns out not to apply, report fix_failed.\n\nProblem:\n%s",
			state.Entry.PackagePath, state.ErrorContext)

	case PhaseFixCode:
		return fmt.Sprintf(
			"Fix the code in %s so the problem below is resolved, then report the applied fix. Iteration %d of %d.\n\nProblem:\n%s",
			state.Entry.PackagePath, state.Iteration, state.Entry.maxIterations(), state.ErrorContext)

	case PhaseVerify:
		return fmt.Sprintf(
			"Verify that the applied fix holds: run the checks for %s and report whether they pass.",
			state.Entry.PackagePath)

	default:
		return ""
	}
}

// Expected step result shapes, keyed by phase. These are the JSON Schemas a
// Continue caller must satisfy; the engine enforces them structurally via
// parseStepResult and the per-phase type check.
var expectedShapes = map[Phase]json.RawMessage{
	PhaseClassify: json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"const": "classification"},
			"applicable": {"type": "boolean"}
		},
		"required": ["type"]
	}`),
	PhaseFixSpec: fixShape,
	PhaseFixCode: fixShape,
	PhaseVerify: json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {"const": "verification"},
			"passed": {"type": "boolean"},
			"details": {"type": "string"}
		},
		"required": ["type", "passed"]
	}`),
}

var fixShape = json.RawMessage(`{
	"type": "object",
	"properties": {
		"type": {"enum": ["fix_applied", "fix_failed"]},
		"summary": {"type": "string"},
		"description": {"type": "string"},
		"reason": {"type": "string"}
	},
	"required": ["type"]
}`)

func expectedShapeFor(phase Phase) json.RawMessage {
	return expectedShapes[phase]
}
