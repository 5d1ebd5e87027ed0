package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/BaSui01/fixflow/tools"
)

// ExitToolName is the reserved name of the result tool.
const ExitToolName = "exit"

// errResultAlreadySet is returned to the model when it calls exit twice
// before the first result was consumed. It is a tool-level error: the run
// continues and the first result stands.
var errResultAlreadySet = errors.New("a final result was already submitted; it is being evaluated")

// resultCell is the single slot the exit tool writes into. At most one
// result can be pending at a time; the runner drains or clears the cell
// between turns.
type resultCell struct {
	mu    sync.Mutex
	set   bool
	value json.RawMessage
}

// put stores a result. A second put before clear fails.
func (c *resultCell) put(v json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return errResultAlreadySet
	}
	// Copy: the raw bytes belong to the decoder's buffer.
	c.value = append(json.RawMessage(nil), v...)
	c.set = true
	return nil
}

// snapshot returns the pending result, if any, without clearing it.
func (c *resultCell) snapshot() (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.set
}

// clear empties the cell so the model can submit again.
func (c *resultCell) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = false
	c.value = nil
}

// newExitTool builds the exit tool over a run's result cell. The declared
// fields come from the agent definition; validation against them happens in
// the executor like for any other tool.
func newExitTool(cell *resultCell, fields []tools.FieldSpec) *tools.Spec {
	return &tools.Spec{
		Name:        ExitToolName,
		Description: "Submit your final result and finish the task. Call this exactly once, when you are done.",
		Fields:      fields,
		Handler: func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
			if err := cell.put(args); err != nil {
				return nil, err
			}
			return json.RawMessage(`{"accepted":true}`), nil
		},
	}
}
