package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

const (
	defaultMaxMatches  = 50
	binarySniffBytes   = 8000
	maxSearchFileBytes = 4 << 20 // files larger than 4MiB are skipped
)

// searchMatch is one hit of the search_files tool.
type searchMatch struct {
	Path    string   `json:"path"`
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Before  []string `json:"before,omitempty"`
	After   []string `json:"after,omitempty"`
}

// searchOutput is the structured result of the search_files tool.
type searchOutput struct {
	Matches   []searchMatch `json:"matches"`
	Truncated bool          `json:"truncated"`
}

// NewSearchTool returns a tool that searches files under the sandbox root
// for a regular expression. Binary content is skipped; malformed patterns
// fail fast; results are capped with an explicit truncation flag.
func NewSearchTool(sandbox *Sandbox) *Spec {
	return &Spec{
		Name:        "search_files",
		Description: "Search workspace files for a regular expression and return matching lines with optional context.",
		Fields: []FieldSpec{
			{Name: "pattern", Type: FieldString, Description: "Regular expression to search for", Required: true},
			{Name: "file_glob", Type: FieldString, Description: "Glob filter on file names, e.g. *.go"},
			{Name: "case_insensitive", Type: FieldBoolean, Description: "Fold case when matching"},
			{Name: "context_lines", Type: FieldInteger, Description: "Lines of context before and after each match"},
			{Name: "max_results", Type: FieldInteger, Description: "Result cap (default 50)"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
			var in struct {
				Pattern         string `json:"pattern"`
				FileGlob        string `json:"file_glob"`
				CaseInsensitive bool   `json:"case_insensitive"`
				ContextLines    int    `json:"context_lines"`
				MaxResults      int    `json:"max_results"`
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}

			pattern := in.Pattern
			if in.CaseInsensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("malformed pattern: %w", err)
			}

			maxResults := in.MaxResults
			if maxResults <= 0 || maxResults > 500 {
				maxResults = defaultMaxMatches
			}

			out := searchOutput{Matches: []searchMatch{}}
			walkErr := filepath.WalkDir(sandbox.Root(), func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil // unreadable entries are skipped, not fatal
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if d.IsDir() {
					if d.Name() == ".git" {
						return filepath.SkipDir
					}
					return nil
				}
				if out.Truncated {
					return filepath.SkipAll
				}
				if in.FileGlob != "" {
					if ok, _ := filepath.Match(in.FileGlob, d.Name()); !ok {
						return nil
					}
				}
				if info, err := d.Info(); err != nil || info.Size() > maxSearchFileBytes {
					return nil
				}

				rel, _ := filepath.Rel(sandbox.Root(), path)
				searchFile(path, rel, re, in.ContextLines, maxResults, &out)
				return nil
			})
			if walkErr != nil && walkErr != filepath.SkipAll {
				return nil, walkErr
			}

			return json.Marshal(out)
		},
	}
}

// searchFile scans one file, appending matches to out until the cap is hit.
func searchFile(path, rel string, re *regexp.Regexp, contextLines, maxResults int, out *searchOutput) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sniff := make([]byte, binarySniffBytes)
	n, _ := f.Read(sniff)
	if bytes.IndexByte(sniff[:n], 0) >= 0 {
		return // binary content
	}
	if _, err := f.Seek(0, 0); err != nil {
		return
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		if len(out.Matches) >= maxResults {
			out.Truncated = true
			return
		}
		m := searchMatch{Path: rel, Line: i + 1, Text: line}
		for j := i - contextLines; j < i; j++ {
			if j >= 0 {
				m.Before = append(m.Before, lines[j])
			}
		}
		for j := i + 1; j <= i+contextLines && j < len(lines); j++ {
			m.After = append(m.After, lines[j])
		}
		out.Matches = append(out.Matches, m)
	}
}
