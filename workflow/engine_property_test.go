package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Any sequence of well-formed step results keeps the workflow inside the
// state machine: phases stay legal for the step applied, iteration never
// exceeds its bound, and a terminal workflow never moves again.
func TestEngineRandomWalk(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxIter := rapid.IntRange(1, 4).Draw(t, "maxIterations")
		e := NewEngine(NewMemoryStore())

		entry := testEntry()
		entry.MaxIterations = maxIter
		start, err := e.Start(context.Background(), entry)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		id := start.WorkflowID

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			state, err := e.Get(context.Background(), id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if state.Phase.Terminal() {
				_, err := e.Continue(context.Background(), id, json.RawMessage(`{"type":"classification","applicable":true}`))
				if err == nil {
					t.Fatalf("terminal workflow accepted another step")
				}
				break
			}

			raw := drawStepFor(t, state.Phase)
			resp, err := e.Continue(context.Background(), id, raw)
			if err != nil {
				t.Fatalf("continue in phase %s with %s: %v", state.Phase, raw, err)
			}

			if resp.Iteration < 1 || resp.Iteration > maxIter+1 {
				t.Fatalf("iteration %d outside bound %d", resp.Iteration, maxIter)
			}
			if resp.IsComplete != resp.Phase.Terminal() {
				t.Fatalf("completion flag disagrees with phase %s", resp.Phase)
			}
			if resp.IsComplete && resp.Status != "success" && resp.Status != "failure" {
				t.Fatalf("terminal status %q", resp.Status)
			}
			if !resp.IsComplete && (resp.NextInstruction == "" || len(resp.ExpectedResultShape) == 0) {
				t.Fatalf("active workflow without instruction in phase %s", resp.Phase)
			}

			after, err := e.Get(context.Background(), id)
			if err != nil {
				t.Fatalf("get after step: %v", err)
			}
			if len(after.History) != len(state.History)+1 {
				t.Fatalf("history grew from %d to %d in phase %s",
					len(state.History), len(after.History), state.Phase)
			}
		}
	})
}

// drawStepFor generates a random well-formed step result for the phase.
func drawStepFor(t *rapid.T, phase Phase) json.RawMessage {
	switch phase {
	case PhaseClassify:
		applicable := rapid.Bool().Draw(t, "applicable")
		return json.RawMessage(fmt.Sprintf(`{"type":"classification","applicable":%t}`, applicable))
	case PhaseFixSpec, PhaseFixCode:
		if rapid.Bool().Draw(t, "applied") {
			return json.RawMessage(`{"type":"fix_applied","summary":"patched"}`)
		}
		return json.RawMessage(`{"type":"fix_failed","reason":"no candidate"}`)
	case PhaseVerify:
		passed := rapid.Bool().Draw(t, "passed")
		return json.RawMessage(fmt.Sprintf(`{"type":"verification","passed":%t,"details":"check output"}`, passed))
	default:
		t.Fatalf("no step for phase %s", phase)
		return nil
	}
}
