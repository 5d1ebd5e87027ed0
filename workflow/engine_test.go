package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fixflow/types"
)

func testEntry() EntryContext {
	return EntryContext{
		Request:       "error X",
		RequestType:   "build_error",
		PackagePath:   "/p",
		MaxIterations: 3,
	}
}

func newTestEngine(opts ...EngineOption) *Engine {
	return NewEngine(NewMemoryStore(), opts...)
}

func step(t *testing.T, e *Engine, id, raw string) *Response {
	t.Helper()
	resp, err := e.Continue(context.Background(), id, json.RawMessage(raw))
	require.NoError(t, err)
	return resp
}

func TestStartValidatesEntry(t *testing.T) {
	e := newTestEngine()

	_, err := e.Start(context.Background(), EntryContext{PackagePath: "/p"})
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))

	_, err = e.Start(context.Background(), EntryContext{Request: "x"})
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))
}

func TestStartCreatesClassifyState(t *testing.T) {
	e := newTestEngine()

	resp, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.WorkflowID)
	assert.Equal(t, PhaseClassify, resp.Phase)
	assert.Equal(t, 1, resp.Iteration)
	assert.False(t, resp.IsComplete)
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.NextInstruction)
	assert.NotEmpty(t, resp.ExpectedResultShape)
}

// Every response carries a human-readable message, terminal ones included.
func TestResponseMessagePerPhase(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	resp := step(t, e, w, `{"type":"classification","applicable":false}`)
	assert.NotEmpty(t, resp.Message)

	resp = step(t, e, w, `{"type":"fix_applied","summary":"patched"}`)
	assert.NotEmpty(t, resp.Message)

	resp = step(t, e, w, `{"type":"verification","passed":true}`)
	require.True(t, resp.IsComplete)
	assert.NotEmpty(t, resp.Message)
}

func TestEngineMaxIterationsSeedsEntry(t *testing.T) {
	e := newTestEngine(WithEngineMaxIterations(1))

	entry := testEntry()
	entry.MaxIterations = 0
	start, err := e.Start(context.Background(), entry)
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	step(t, e, w, `{"type":"fix_applied","summary":"try"}`)
	resp := step(t, e, w, `{"type":"verification","passed":false,"details":"no"}`)

	// One verify failure exhausts the engine-level bound.
	assert.Equal(t, PhaseFailed, resp.Phase)
	assert.True(t, resp.IsComplete)

	// An entry that names its own bound keeps it.
	start2, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	state, err := e.Get(context.Background(), start2.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Entry.MaxIterations)
}

func TestClassificationRouting(t *testing.T) {
	t.Run("applicable routes to targeted branch", func(t *testing.T) {
		e := newTestEngine()
		start, err := e.Start(context.Background(), testEntry())
		require.NoError(t, err)

		resp := step(t, e, start.WorkflowID, `{"type":"classification","applicable":true}`)
		assert.Equal(t, PhaseFixSpec, resp.Phase)
	})

	t.Run("not applicable routes to code branch", func(t *testing.T) {
		e := newTestEngine()
		start, err := e.Start(context.Background(), testEntry())
		require.NoError(t, err)

		resp := step(t, e, start.WorkflowID, `{"type":"classification","applicable":false}`)
		assert.Equal(t, PhaseFixCode, resp.Phase)
	})

	t.Run("indeterminate routes to code branch", func(t *testing.T) {
		e := newTestEngine()
		start, err := e.Start(context.Background(), testEntry())
		require.NoError(t, err)

		resp := step(t, e, start.WorkflowID, `{"type":"classification"}`)
		assert.Equal(t, PhaseFixCode, resp.Phase)
	})
}

// The exact sequence from the build-error scenario: not-applicable
// classification, then a failed code fix ends the workflow.
func TestCodeFixFailureScenario(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	resp := step(t, e, w, `{"type":"classification","applicable":false}`)
	assert.Equal(t, PhaseFixCode, resp.Phase)

	resp = step(t, e, w, `{"type":"fix_failed","reason":"r"}`)
	assert.Equal(t, PhaseFailed, resp.Phase)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "failure", resp.Status)

	// A completed id can never be resumed.
	_, err = e.Continue(context.Background(), w, json.RawMessage(`{"type":"fix_failed","reason":"again"}`))
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))
}

func TestTargetedFixFallsThroughToCodeFix(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":true}`)
	resp := step(t, e, w, `{"type":"fix_failed","reason":"does not apply here"}`)
	assert.Equal(t, PhaseFixCode, resp.Phase)
	assert.False(t, resp.IsComplete)
}

func TestSuccessPath(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	resp := step(t, e, w, `{"type":"fix_applied","summary":"patched the client"}`)
	assert.Equal(t, PhaseVerify, resp.Phase)

	resp = step(t, e, w, `{"type":"verification","passed":true,"details":"all checks pass"}`)
	assert.Equal(t, PhaseSucceeded, resp.Phase)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "all checks pass", resp.Summary)
}

func TestVerifyFailureLoopsBackToClassify(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	step(t, e, w, `{"type":"fix_applied","summary":"try 1"}`)
	resp := step(t, e, w, `{"type":"verification","passed":false,"details":"still broken: Y"}`)

	assert.Equal(t, PhaseClassify, resp.Phase)
	assert.Equal(t, 2, resp.Iteration)
	assert.False(t, resp.IsComplete)

	// The refreshed error context drives the next classification round.
	state, err := e.Get(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, "still broken: Y", state.ErrorContext)
}

func TestMaxIterationsLocksFailure(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	var resp *Response
	for i := 0; i < 3; i++ {
		resp = step(t, e, w, `{"type":"classification","applicable":false}`)
		resp = step(t, e, w, fmt.Sprintf(`{"type":"fix_applied","summary":"try %d"}`, i+1))
		resp = step(t, e, w, `{"type":"verification","passed":false,"details":"no"}`)
		if resp.IsComplete {
			break
		}
	}

	// Exactly maxIterations consecutive verify failures reach Failure.
	assert.Equal(t, PhaseFailed, resp.Phase)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "failure", resp.Status)

	_, err = e.Continue(context.Background(), w, json.RawMessage(`{"type":"classification","applicable":false}`))
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))
}

func TestUnknownWorkflowID(t *testing.T) {
	e := newTestEngine()

	_, err := e.Continue(context.Background(), "no-such-id", json.RawMessage(`{"type":"classification","applicable":true}`))
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))

	_, err = e.Get(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, types.IsContractViolation(err))
}

// Contract violations must leave the stored state byte-for-byte unchanged.
func TestContractViolationLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	before, err := e.Get(context.Background(), w)
	require.NoError(t, err)
	beforeJSON, err := json.Marshal(before)
	require.NoError(t, err)

	rejected := []string{
		`{"applicable":true}`,                   // missing discriminator
		`{"type":"mystery"}`,                    // unknown discriminator
		`{"type":"fix_applied"}`,                // wrong type for classify phase
		`not json at all`,                       // malformed payload
		`{"type":"verification","passed":true}`, // wrong phase
	}
	for _, raw := range rejected {
		_, err := e.Continue(context.Background(), w, json.RawMessage(raw))
		require.Error(t, err, "payload %s", raw)
		assert.True(t, types.IsContractViolation(err), "payload %s", raw)
	}

	after, err := e.Get(context.Background(), w)
	require.NoError(t, err)
	afterJSON, err := json.Marshal(after)
	require.NoError(t, err)
	assert.Equal(t, beforeJSON, afterJSON)
}

func TestSynchronousVerifierCollapsesVerifyPhase(t *testing.T) {
	calls := 0
	verifier := VerifierFunc(func(_ context.Context, state *State) (*VerificationResult, error) {
		calls++
		return &VerificationResult{Passed: true, Details: "checked " + state.Entry.PackagePath}, nil
	})
	e := newTestEngine(WithVerifier(verifier))

	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	resp := step(t, e, w, `{"type":"fix_applied","summary":"patched"}`)

	// The fix report goes straight to a terminal phase; no separate verify
	// round trip.
	assert.Equal(t, PhaseSucceeded, resp.Phase)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, 1, calls)
}

func TestSynchronousVerifierFailureLoops(t *testing.T) {
	verifier := VerifierFunc(func(context.Context, *State) (*VerificationResult, error) {
		return &VerificationResult{Passed: false, Details: "still failing"}, nil
	})
	e := newTestEngine(WithVerifier(verifier))

	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	resp := step(t, e, w, `{"type":"fix_applied","summary":"patched"}`)

	assert.Equal(t, PhaseClassify, resp.Phase)
	assert.Equal(t, 2, resp.Iteration)
}

func TestHistoryRecordsTransitions(t *testing.T) {
	e := newTestEngine()
	start, err := e.Start(context.Background(), testEntry())
	require.NoError(t, err)
	w := start.WorkflowID

	step(t, e, w, `{"type":"classification","applicable":false}`)
	step(t, e, w, `{"type":"fix_applied","summary":"patched"}`)
	step(t, e, w, `{"type":"verification","passed":true}`)

	state, err := e.Get(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, state.History, 3)
	assert.Equal(t, StepClassification, state.History[0].Action)
	assert.Equal(t, string(PhaseFixCode), state.History[0].Outcome)
	assert.Equal(t, StepFixApplied, state.History[1].Action)
	assert.Equal(t, StepVerification, state.History[2].Action)
	assert.Equal(t, string(PhaseSucceeded), state.History[2].Outcome)
}

func TestHistoryRetentionCap(t *testing.T) {
	s := &State{}
	for i := 0; i < MaxHistoryEntries+10; i++ {
		s.appendHistory(HistoryEntry{Iteration: i})
	}
	assert.Len(t, s.History, MaxHistoryEntries)
	assert.Equal(t, 10, s.History[0].Iteration)
}
