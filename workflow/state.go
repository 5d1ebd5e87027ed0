package workflow

import (
	"time"
)

// Phase is a workflow state machine node.
type Phase string

const (
	// PhaseClassify decides whether the targeted spec-level fix applies.
	PhaseClassify Phase = "classify"

	// PhaseFixSpec is the targeted fix branch, taken when classification
	// reports it applicable. A not-applicable outcome falls through to the
	// code-fix branch instead of failing.
	PhaseFixSpec Phase = "fix_spec"

	// PhaseFixCode is the general fix branch.
	PhaseFixCode Phase = "fix_code"

	// PhaseVerify checks whether the applied fix holds.
	PhaseVerify Phase = "verify"

	// PhaseSucceeded and PhaseFailed are terminal.
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase ends the workflow.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// DefaultMaxIterations bounds the verify-to-classify back edge when the
// entry context declares no budget.
const DefaultMaxIterations = 3

// MaxHistoryEntries caps the retained transition history per workflow.
// Older entries are dropped first.
const MaxHistoryEntries = 256

// EntryContext is the immutable input a workflow starts with.
type EntryContext struct {
	// Request is the problem statement to fix.
	Request string `json:"request"`

	// RequestType is an optional caller hint about the request kind,
	// e.g. "build_error".
	RequestType string `json:"request_type,omitempty"`

	// PackagePath locates the code under repair.
	PackagePath string `json:"package_path"`

	// TargetPaths optionally narrows the files in scope.
	TargetPaths []string `json:"target_paths,omitempty"`

	// MaxIterations bounds how often a failed verification may send the
	// workflow back to classification. Zero means DefaultMaxIterations.
	MaxIterations int `json:"max_iterations,omitempty"`
}

func (e EntryContext) maxIterations() int {
	if e.MaxIterations > 0 {
		return e.MaxIterations
	}
	return DefaultMaxIterations
}

// HistoryEntry records one transition. History feeds the terminal summary
// only; transitions never consult it.
type HistoryEntry struct {
	Iteration int       `json:"iteration"`
	Phase     Phase     `json:"phase"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// State is the persistent record of one workflow.
type State struct {
	ID    string       `json:"id"`
	Phase Phase        `json:"phase"`
	Entry EntryContext `json:"entry"`

	// ErrorContext is the current description of what is wrong. It starts
	// as the entry request and is refreshed with verification details on
	// each failed verify.
	ErrorContext string `json:"error_context"`

	// Iteration counts classify-fix-verify rounds, starting at 1.
	Iteration int `json:"iteration"`

	// LastFixKind remembers which fix branch produced the fix under
	// verification.
	LastFixKind Phase `json:"last_fix_kind,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`

	// Status and Summary are set when the workflow reaches a terminal
	// phase.
	Status  string `json:"status,omitempty"`
	Summary string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// appendHistory records a transition, dropping the oldest entry beyond the
// retention cap.
func (s *State) appendHistory(entry HistoryEntry) {
	s.History = append(s.History, entry)
	if len(s.History) > MaxHistoryEntries {
		s.History = s.History[len(s.History)-MaxHistoryEntries:]
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	if s.History != nil {
		out.History = append([]HistoryEntry(nil), s.History...)
	}
	if s.Entry.TargetPaths != nil {
		out.Entry.TargetPaths = append([]string(nil), s.Entry.TargetPaths...)
	}
	return &out
}
