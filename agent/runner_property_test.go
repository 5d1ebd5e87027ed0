package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/fixflow/testutil/mocks"
	"github.com/BaSui01/fixflow/types"
)

// For any bound N with an always-failing validator, the runner makes exactly
// N backend calls before reporting the bound exceeded.
func TestRunnerIterationBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	properties.Property("exactly N turns for bound N", prop.ForAll(
		func(n int) bool {
			provider := mocks.NewMockProvider().WithScript(
				mocks.ScriptedTurn{ToolCalls: []types.ToolCall{
					{ID: "c", Name: ExitToolName, Arguments: json.RawMessage(`{}`)},
				}},
			)
			def := &Definition{
				Name:          "bounded",
				Model:         "test-model",
				MaxIterations: n,
				Validate: func(context.Context, json.RawMessage) error {
					return fmt.Errorf("rejected")
				},
			}

			_, err := NewRunner(provider).Run(context.Background(), def, "go")
			return types.GetErrorCode(err) == types.ErrIterationsExceeded &&
				provider.CallCount() == n
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
