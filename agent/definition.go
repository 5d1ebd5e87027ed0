package agent

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/fixflow/tools"
	"github.com/BaSui01/fixflow/types"
)

// DefaultMaxIterations bounds a run when the definition declares no budget.
const DefaultMaxIterations = 10

// Validator inspects the result the model submitted through the exit tool.
// A non-nil error rejects the result; its message is fed back to the model
// as a corrective prompt and the run continues.
type Validator func(ctx context.Context, result json.RawMessage) error

// Definition describes one agent: its prompt, backend model, tool set, the
// declared shape of its final result, and an optional validator over that
// result.
type Definition struct {
	Name          string
	SystemPrompt  string
	Model         string
	MaxIterations int
	MaxTokens     int
	Temperature   float32

	// Tools are the capabilities offered to the model. The exit tool is
	// added automatically and must not appear here.
	Tools []*tools.Spec

	// ResultFields declares the input shape of the exit tool, i.e. the
	// shape of the run's final result.
	ResultFields []tools.FieldSpec

	// Validate, when set, gates exit results. Nil accepts everything.
	Validate Validator
}

// validate checks the definition before a run starts.
func (d *Definition) validate() error {
	if d == nil {
		return types.NewError(types.ErrContractViolation, "agent definition is nil")
	}
	if d.Name == "" {
		return types.NewError(types.ErrContractViolation, "agent definition has no name")
	}
	if d.Model == "" {
		return types.NewError(types.ErrContractViolation, "agent definition has no model")
	}
	for _, t := range d.Tools {
		if t != nil && t.Name == ExitToolName {
			return types.NewError(types.ErrContractViolation,
				"tool name exit is reserved for the result tool")
		}
	}
	return nil
}

// maxIterations returns the declared budget or the default.
func (d *Definition) maxIterations() int {
	if d.MaxIterations > 0 {
		return d.MaxIterations
	}
	return DefaultMaxIterations
}
