package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// readFileOutput is the structured result of the read_file tool.
type readFileOutput struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	TotalLines int    `json:"total_lines"`
}

// NewReadFileTool returns a tool that reads a line range from a file inside
// the sandbox. Out-of-range bounds are clamped rather than rejected; every
// returned line carries its line number as a prefix.
func NewReadFileTool(sandbox *Sandbox) *Spec {
	return &Spec{
		Name:        "read_file",
		Description: "Read a range of lines from a file. Line numbers are 1-based; omitted bounds default to the whole file.",
		Fields: []FieldSpec{
			{Name: "path", Type: FieldString, Description: "File path relative to the workspace root", Required: true},
			{Name: "start_line", Type: FieldInteger, Description: "First line to read (1-based)"},
			{Name: "end_line", Type: FieldInteger, Description: "Last line to read (inclusive)"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var in struct {
				Path      string `json:"path"`
				StartLine int    `json:"start_line"`
				EndLine   int    `json:"end_line"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}

			resolved, err := sandbox.Resolve(in.Path)
			if err != nil {
				return nil, err
			}

			data, err := os.ReadFile(resolved)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", in.Path, err)
			}

			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
			total := len(lines)

			start := in.StartLine
			if start < 1 {
				start = 1
			}
			if start > total {
				start = total
			}
			end := in.EndLine
			if end < 1 || end > total {
				end = total
			}
			if end < start {
				end = start
			}

			var b strings.Builder
			for i := start; i <= end; i++ {
				fmt.Fprintf(&b, "%d: %s\n", i, lines[i-1])
			}

			return json.Marshal(readFileOutput{
				Path:       in.Path,
				Content:    b.String(),
				StartLine:  start,
				EndLine:    end,
				TotalLines: total,
			})
		},
	}
}
