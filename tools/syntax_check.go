package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// syntaxCheckOutput is the structured result of the syntax_check tool.
type syntaxCheckOutput struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// NewSyntaxCheckTool returns a tool that runs a configured build or check
// command in the sandbox root and reports whether it succeeded. The command
// is fixed at construction time; the model cannot choose what to run.
func NewSyntaxCheckTool(sandbox *Sandbox, command string, args ...string) *Spec {
	return &Spec{
		Name:        "syntax_check",
		Description: "Run the project's syntax check and report success plus the tool output.",
		Fields:      nil,
		Timeout:     2 * time.Minute,
		Handler: func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			if command == "" {
				return nil, fmt.Errorf("no syntax check command configured")
			}

			cmd := exec.CommandContext(ctx, command, args...)
			cmd.Dir = sandbox.Root()
			out, err := cmd.CombinedOutput()

			result := syntaxCheckOutput{
				Success: err == nil,
				Output:  string(out),
			}
			if exitErr, ok := err.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
			} else if err != nil {
				// The command did not run at all (missing binary, context
				// cancelled before start). That is a tool failure, not a
				// failed check.
				return nil, fmt.Errorf("run %s: %w", command, err)
			}

			return json.Marshal(result)
		},
	}
}
