package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/fixflow/types"
)

// Step result discriminators. Every result reported through Continue is a
// JSON object whose "type" field selects one of these shapes.
const (
	StepClassification = "classification"
	StepFixApplied     = "fix_applied"
	StepFixFailed      = "fix_failed"
	StepVerification   = "verification"
)

// StepResult is the decoded form of a reported step result. Only the fields
// belonging to the discriminated type are meaningful.
type StepResult struct {
	Type string `json:"type"`

	// classification: whether the targeted fix branch applies. A pointer
	// so a missing field is told apart from false.
	Applicable *bool `json:"applicable,omitempty"`

	// fix_applied / fix_failed. Some reporters say "description" instead of
	// "summary"; both are accepted.
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`

	// verification
	Passed  *bool  `json:"passed,omitempty"`
	Details string `json:"details,omitempty"`
}

// parseStepResult decodes and checks a raw step result. Anything that is not
// a well-formed result of a known type is a contract violation.
func parseStepResult(raw json.RawMessage) (*StepResult, error) {
	if len(raw) == 0 {
		return nil, types.NewError(types.ErrContractViolation, "step result is empty")
	}

	var step StepResult
	if err := json.Unmarshal(raw, &step); err != nil {
		return nil, types.NewError(types.ErrContractViolation,
			"step result is not a JSON object").WithCause(err)
	}

	switch step.Type {
	case StepClassification:
		// A missing applicable field is an indeterminate classification; the
		// engine routes it to the general branch rather than rejecting it.
	case StepVerification:
		if step.Passed == nil {
			return nil, types.NewError(types.ErrContractViolation,
				"verification result has no passed field")
		}
	case StepFixApplied, StepFixFailed:
	case "":
		return nil, types.NewError(types.ErrContractViolation, "step result has no type")
	default:
		return nil, types.NewError(types.ErrContractViolation,
			fmt.Sprintf("unknown step result type %q", step.Type))
	}

	return &step, nil
}

// summaryText returns the fix summary under either accepted field name.
func (s *StepResult) summaryText() string {
	if s.Summary != "" {
		return s.Summary
	}
	return s.Description
}
