package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/fixflow/agent"
	"github.com/BaSui01/fixflow/workflow"
)

// agentVerifier runs the verifier agent against a workflow's package and
// translates its exit payload into a verification result.
type agentVerifier struct {
	runner *agent.Runner
	def    *agent.Definition
}

func (v *agentVerifier) Verify(ctx context.Context, state *workflow.State) (*workflow.VerificationResult, error) {
	prompt := fmt.Sprintf(
		"Package: %s\nReported problem: %s\nApplied fix: %s\n\nRun the checks and report whether the fix holds.",
		state.Entry.PackagePath, state.ErrorContext, state.Summary)

	run, err := v.runner.Run(ctx, v.def, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		Passed  bool   `json:"passed"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(run.Output, &out); err != nil {
		return nil, fmt.Errorf("decode verifier result: %w", err)
	}
	return &workflow.VerificationResult{Passed: out.Passed, Details: out.Details}, nil
}

var _ workflow.Verifier = (*agentVerifier)(nil)
