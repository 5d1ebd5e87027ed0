package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fixflow/tools"
)

func presetSandbox(t *testing.T) *tools.Sandbox {
	t.Helper()
	sb, err := tools.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb
}

func TestPresetDefinitionsAreValid(t *testing.T) {
	sb := presetSandbox(t)

	defs := []*Definition{
		ClassifierDefinition("gpt-4o", sb),
		FixerDefinition("gpt-4o", sb, "go", "build", "./..."),
		VerifierDefinition("gpt-4o", sb, "go", "build", "./..."),
	}
	for _, def := range defs {
		assert.NoError(t, def.validate(), def.Name)
	}
}

func TestFixerValidatorRequiresSummary(t *testing.T) {
	def := FixerDefinition("gpt-4o", presetSandbox(t), "go", "build")
	ctx := context.Background()

	assert.NoError(t, def.Validate(ctx, json.RawMessage(`{"applied":true,"summary":"renamed field"}`)))
	assert.NoError(t, def.Validate(ctx, json.RawMessage(`{"applied":false,"reason":"nothing to change"}`)))
	assert.Error(t, def.Validate(ctx, json.RawMessage(`{"applied":true}`)))
	assert.Error(t, def.Validate(ctx, json.RawMessage(`not json`)))
}

func TestClassifierResultShape(t *testing.T) {
	def := ClassifierDefinition("gpt-4o", presetSandbox(t))

	var required []string
	for _, f := range def.ResultFields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	assert.Equal(t, []string{"applicable"}, required)
	assert.Len(t, def.Tools, 2)
}
