package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/fixflow/internal/metrics"
	"github.com/BaSui01/fixflow/types"
)

// VerificationResult is the outcome of one verification pass.
type VerificationResult struct {
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// Verifier runs the verification check for a workflow. When an Engine has
// one, it verifies synchronously on entering the verify phase instead of
// waiting for the caller to report a verification result, saving one round
// trip per fix.
type Verifier interface {
	Verify(ctx context.Context, state *State) (*VerificationResult, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, state *State) (*VerificationResult, error)

func (f VerifierFunc) Verify(ctx context.Context, state *State) (*VerificationResult, error) {
	return f(ctx, state)
}

// Response is what Start and Continue hand back to the caller: where the
// workflow stands and, unless it is complete, what to do next.
type Response struct {
	WorkflowID          string          `json:"workflow_id"`
	Phase               Phase           `json:"phase"`
	Iteration           int             `json:"iteration"`
	IsComplete          bool            `json:"is_complete"`
	Message             string          `json:"message"`
	Status              string          `json:"status,omitempty"`
	Summary             string          `json:"summary,omitempty"`
	NextInstruction     string          `json:"next_instruction,omitempty"`
	ExpectedResultShape json.RawMessage `json:"expected_result_shape,omitempty"`
}

// Engine drives workflows through the state machine:
//
//	Classify → FixSpec | FixCode → Verify → Succeeded | Failed
//
// with FixSpec falling through to FixCode when not applicable, and a failed
// Verify looping back to Classify while iteration stays within bound.
type Engine struct {
	store         Store
	logger        *zap.Logger
	metrics       *metrics.Collector
	verifier      Verifier
	maxIterations int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEngineMetrics sets the metrics collector.
func WithEngineMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = c }
}

// WithVerifier sets a synchronous verifier.
func WithVerifier(v Verifier) EngineOption {
	return func(e *Engine) { e.verifier = v }
}

// WithEngineMaxIterations sets the fix-attempt bound used when an entry
// context does not carry its own.
func WithEngineMaxIterations(n int) EngineOption {
	return func(e *Engine) { e.maxIterations = n }
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a new workflow in the classify phase and returns its id
// together with the first instruction. Missing required fields reject the
// call before any state exists.
func (e *Engine) Start(ctx context.Context, entry EntryContext) (*Response, error) {
	if entry.Request == "" {
		return nil, types.NewError(types.ErrContractViolation, "entry context has no request")
	}
	if entry.PackagePath == "" {
		return nil, types.NewError(types.ErrContractViolation, "entry context has no package path")
	}
	if entry.MaxIterations == 0 && e.maxIterations > 0 {
		entry.MaxIterations = e.maxIterations
	}

	now := time.Now().UTC()
	state := &State{
		ID:           uuid.NewString(),
		Phase:        PhaseClassify,
		Entry:        entry,
		ErrorContext: entry.Request,
		Iteration:    1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	e.logger.Info("workflow started",
		zap.String("workflow_id", state.ID),
		zap.String("request_type", entry.RequestType),
		zap.String("package", entry.PackagePath))
	return e.respond(state), nil
}

// Get returns the current state of a workflow.
func (e *Engine) Get(ctx context.Context, id string) (*State, error) {
	state, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkflowNotFound) {
			return nil, types.NewError(types.ErrContractViolation,
				fmt.Sprintf("unknown workflow id %q", id)).WithCause(err)
		}
		return nil, err
	}
	return state, nil
}

// Continue advances a workflow with a reported step result. On any contract
// violation — unknown id, completed workflow, malformed or mismatched step
// result — the stored state is left untouched.
func (e *Engine) Continue(ctx context.Context, id string, raw json.RawMessage) (*Response, error) {
	state, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Phase.Terminal() {
		return nil, types.NewError(types.ErrContractViolation,
			fmt.Sprintf("workflow %s already completed with status %s", id, state.Status))
	}

	step, err := parseStepResult(raw)
	if err != nil {
		return nil, err
	}

	if err := e.advance(state, step); err != nil {
		return nil, err
	}

	// A synchronous verifier collapses the verify phase: verification runs
	// here and its result is applied as the next step.
	for state.Phase == PhaseVerify && e.verifier != nil {
		result, verr := e.verifier.Verify(ctx, state)
		if verr != nil {
			return nil, types.NewError(types.ErrDomainFailure, "verification run failed").WithCause(verr)
		}
		passed := result.Passed
		if err := e.advance(state, &StepResult{
			Type:    StepVerification,
			Passed:  &passed,
			Details: result.Details,
		}); err != nil {
			return nil, err
		}
	}

	if err := e.persist(ctx, state); err != nil {
		return nil, err
	}
	return e.respond(state), nil
}

// advance applies one step result to the in-memory copy of the state.
// Persistence happens afterwards, so a rejected step leaves the store
// untouched.
func (e *Engine) advance(state *State, step *StepResult) error {
	from := state.Phase
	iteration := state.Iteration

	next, err := e.transition(state, step)
	if err != nil {
		return err
	}

	state.appendHistory(HistoryEntry{
		Iteration: iteration,
		Phase:     from,
		Action:    step.Type,
		Outcome:   string(next),
		Detail:    stepDetail(step),
		At:        time.Now().UTC(),
	})
	state.Phase = next
	state.UpdatedAt = time.Now().UTC()

	if e.metrics != nil {
		e.metrics.RecordTransition(string(from), string(next))
	}
	e.logger.Info("workflow transition",
		zap.String("workflow_id", state.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.Int("iteration", state.Iteration))
	return nil
}

// transition computes the next phase for a step result, updating iteration
// and terminal status on the way. A result whose type does not belong to
// the current phase is a contract violation.
func (e *Engine) transition(state *State, step *StepResult) (Phase, error) {
	switch state.Phase {
	case PhaseClassify:
		if step.Type != StepClassification {
			return "", e.wrongStep(state, StepClassification, step.Type)
		}
		// Indeterminate classifications never stall the workflow; anything
		// short of a definite yes takes the general branch.
		if step.Applicable != nil && *step.Applicable {
			return PhaseFixSpec, nil
		}
		return PhaseFixCode, nil

	case PhaseFixSpec:
		switch step.Type {
		case StepFixApplied:
			state.LastFixKind = PhaseFixSpec
			state.Summary = step.summaryText()
			return PhaseVerify, nil
		case StepFixFailed:
			// The targeted fix did not apply; fall through to the general
			// branch rather than failing the workflow.
			return PhaseFixCode, nil
		default:
			return "", e.wrongStep(state, StepFixApplied+" or "+StepFixFailed, step.Type)
		}

	case PhaseFixCode:
		switch step.Type {
		case StepFixApplied:
			state.LastFixKind = PhaseFixCode
			state.Summary = step.summaryText()
			return PhaseVerify, nil
		case StepFixFailed:
			state.Status = "failure"
			state.Summary = fmt.Sprintf("fix failed: %s", step.Reason)
			return PhaseFailed, nil
		default:
			return "", e.wrongStep(state, StepFixApplied+" or "+StepFixFailed, step.Type)
		}

	case PhaseVerify:
		if step.Type != StepVerification {
			return "", e.wrongStep(state, StepVerification, step.Type)
		}
		if *step.Passed {
			state.Status = "success"
			if step.Details != "" {
				state.Summary = step.Details
			}
			return PhaseSucceeded, nil
		}
		state.Iteration++
		if state.Iteration > state.Entry.maxIterations() {
			state.Status = "failure"
			state.Summary = fmt.Sprintf("verification still failing after %d iterations: %s",
				state.Entry.maxIterations(), step.Details)
			return PhaseFailed, nil
		}
		if step.Details != "" {
			state.ErrorContext = step.Details
		}
		return PhaseClassify, nil

	default:
		return "", types.NewError(types.ErrContractViolation,
			fmt.Sprintf("workflow %s is in unexpected phase %s", state.ID, state.Phase))
	}
}

func (e *Engine) wrongStep(state *State, want, got string) error {
	return types.NewError(types.ErrContractViolation,
		fmt.Sprintf("workflow %s in phase %s expects a %s result, got %q",
			state.ID, state.Phase, want, got))
}

// stepDetail picks the human-readable part of a step result for history.
func stepDetail(step *StepResult) string {
	switch step.Type {
	case StepClassification:
		if step.Applicable == nil {
			return "applicable=indeterminate"
		}
		return fmt.Sprintf("applicable=%t", *step.Applicable)
	case StepFixApplied:
		return step.summaryText()
	case StepFixFailed:
		return step.Reason
	case StepVerification:
		return step.Details
	}
	return ""
}

// persist writes the advanced state back. Terminal states claim the
// completion marker first; losing that race means another caller completed
// the workflow concurrently, and this caller must not write.
func (e *Engine) persist(ctx context.Context, state *State) error {
	if state.Phase.Terminal() {
		if err := e.store.CompleteOnce(ctx, state.ID); err != nil {
			if errors.Is(err, ErrAlreadyCompleted) {
				return types.NewError(types.ErrContractViolation,
					fmt.Sprintf("workflow %s already completed", state.ID)).WithCause(err)
			}
			return err
		}
		if e.metrics != nil {
			e.metrics.RecordWorkflowCompleted(state.Status)
		}
		e.logger.Info("workflow completed",
			zap.String("workflow_id", state.ID),
			zap.String("status", state.Status))
	}
	if err := e.store.Update(ctx, state); err != nil {
		return fmt.Errorf("persist workflow %s: %w", state.ID, err)
	}
	return nil
}

// respond builds the caller-facing view of the state.
func (e *Engine) respond(state *State) *Response {
	resp := &Response{
		WorkflowID: state.ID,
		Phase:      state.Phase,
		Iteration:  state.Iteration,
		IsComplete: state.Phase.Terminal(),
		Message:    phaseMessage(state),
		Status:     state.Status,
		Summary:    state.Summary,
	}
	if !resp.IsComplete {
		resp.NextInstruction = instructionFor(state)
		resp.ExpectedResultShape = expectedShapeFor(state.Phase)
	}
	return resp
}

// phaseMessage is the short human-readable status line of a response.
func phaseMessage(state *State) string {
	switch state.Phase {
	case PhaseClassify:
		return "awaiting classification of the reported error"
	case PhaseFixSpec:
		return "awaiting the targeted fix report"
	case PhaseFixCode:
		return "awaiting the code fix report"
	case PhaseVerify:
		return "awaiting the verification result"
	case PhaseSucceeded:
		return "workflow succeeded"
	case PhaseFailed:
		return "workflow failed"
	}
	return string(state.Phase)
}
