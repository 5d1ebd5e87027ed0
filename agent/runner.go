package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fixflow/internal/metrics"
	"github.com/BaSui01/fixflow/llm"
	"github.com/BaSui01/fixflow/llm/tokenizer"
	"github.com/BaSui01/fixflow/tools"
	"github.com/BaSui01/fixflow/types"
)

// RunResult is the outcome of a successful run.
type RunResult struct {
	// Output is the validated payload the model passed to the exit tool.
	Output json.RawMessage

	// Iterations is the number of backend turns consumed, including the
	// final one.
	Iterations int

	// Messages is the full conversation transcript.
	Messages []types.Message
}

// Runner drives agent runs against one backend provider.
type Runner struct {
	provider llm.Provider
	logger   *zap.Logger
	sink     UsageSink
	metrics  *metrics.Collector
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithUsageSink sets the token usage sink.
func WithUsageSink(sink UsageSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// NewRunner creates a runner over the given provider.
func NewRunner(provider llm.Provider, opts ...Option) *Runner {
	r := &Runner{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one bounded conversation. The model works the task with the
// definition's tools and finishes by calling exit; each backend turn
// consumes one iteration. The loop ends in exactly one of four ways: a
// validated exit result, the model stopping without exit (NO_RESULT), the
// iteration budget running out (ITERATIONS_EXCEEDED), or cancellation.
// Backend errors abort the run as-is.
func (r *Runner) Run(ctx context.Context, def *Definition, prompt string) (*RunResult, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	cell := &resultCell{}
	registry := tools.NewRegistry(r.logger)
	for _, t := range def.Tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	if err := registry.Register(newExitTool(cell, def.ResultFields)); err != nil {
		return nil, err
	}
	executor := tools.NewDefaultExecutor(registry, r.logger, tools.WithExecutorMetrics(r.metrics))
	schemas := registry.List()

	messages := make([]types.Message, 0, 8)
	if def.SystemPrompt != "" {
		messages = append(messages, types.NewSystemMessage(def.SystemPrompt))
	}
	messages = append(messages, types.NewUserMessage(prompt))

	maxIter := def.maxIterations()
	r.logger.Info("agent run started",
		zap.String("agent", def.Name),
		zap.String("model", def.Model),
		zap.Int("max_iterations", maxIter))

	for iter := 1; iter <= maxIter; iter++ {
		// Cancellation is honored at the turn boundary; a turn in flight
		// finishes or fails on its own context.
		if err := ctx.Err(); err != nil {
			r.recordRun(def.Name, "cancelled", iter-1)
			return nil, types.NewError(types.ErrCancelled, "agent run cancelled").WithCause(err)
		}

		resp, err := r.completeTurn(ctx, def, messages, schemas)
		if err != nil {
			r.recordRun(def.Name, "backend_error", iter)
			return nil, err
		}

		assistant := resp.Choices[0].Message
		messages = append(messages, assistant)

		if len(assistant.ToolCalls) == 0 {
			// The model stopped talking without submitting a result.
			r.recordRun(def.Name, "no_result", iter)
			return nil, types.NewError(types.ErrNoResult,
				fmt.Sprintf("agent %s completed without calling %s", def.Name, ExitToolName))
		}

		// Every requested call of the turn resolves before the exit result
		// is evaluated, so tool outcomes and the result stay in sync.
		results := executor.Execute(ctx, assistant.ToolCalls)
		for _, res := range results {
			messages = append(messages, res.ToMessage())
		}

		value, ok := cell.snapshot()
		if !ok {
			continue
		}

		if def.Validate != nil {
			if verr := def.Validate(ctx, value); verr != nil {
				r.logger.Warn("exit result rejected",
					zap.String("agent", def.Name),
					zap.Int("iteration", iter),
					zap.Error(verr))
				cell.clear()
				messages = append(messages, types.NewUserMessage(correctivePrompt(verr)))
				continue
			}
		}

		r.logger.Info("agent run finished",
			zap.String("agent", def.Name),
			zap.Int("iterations", iter))
		r.recordRun(def.Name, "success", iter)
		return &RunResult{Output: value, Iterations: iter, Messages: messages}, nil
	}

	r.recordRun(def.Name, "iterations_exceeded", maxIter)
	return nil, types.NewError(types.ErrIterationsExceeded,
		fmt.Sprintf("agent %s produced no accepted result within %d iterations", def.Name, maxIter))
}

// completeTurn issues one backend request and accounts its usage.
func (r *Runner) completeTurn(ctx context.Context, def *Definition, messages []types.Message, schemas []types.ToolSchema) (*llm.ChatResponse, error) {
	req := &llm.ChatRequest{
		Model:       def.Model,
		Messages:    messages,
		MaxTokens:   def.MaxTokens,
		Temperature: def.Temperature,
		Tools:       schemas,
	}

	start := time.Now()
	resp, err := r.provider.Completion(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordBackendRequest(r.provider.Name(), def.Model, "error", elapsed)
		}
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordBackendRequest(r.provider.Name(), def.Model, "ok", elapsed)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewError(types.ErrBackendError, "backend returned no choices").
			WithProvider(r.provider.Name())
	}

	r.recordUsage(def.Model, messages, resp)
	return resp, nil
}

// recordUsage publishes the turn's token usage, estimating it locally when
// the backend response carries no usage block.
func (r *Runner) recordUsage(model string, sent []types.Message, resp *llm.ChatResponse) {
	event := types.UsageEvent{
		Model:     model,
		Timestamp: time.Now(),
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		event.PromptTokens = resp.Usage.PromptTokens
		event.CompletionTokens = resp.Usage.CompletionTokens
	} else {
		counter := tokenizer.ForModel(model)
		event.Estimated = true
		event.PromptTokens, _ = counter.CountMessages(toTokenizerMessages(sent))
		if len(resp.Choices) > 0 {
			event.CompletionTokens, _ = counter.CountTokens(resp.Choices[0].Message.Content)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordTokens(model, event.PromptTokens, event.CompletionTokens)
	}
	if r.sink != nil {
		r.sink.Record(event)
	}
}

func (r *Runner) recordRun(agent, outcome string, iterations int) {
	if r.metrics != nil {
		r.metrics.RecordAgentRun(agent, outcome, iterations)
	}
}

// correctivePrompt turns a validation error into the retry message sent back
// to the model.
func correctivePrompt(verr error) string {
	return fmt.Sprintf(
		"Your submitted result was rejected: %v\nFix the problem and call %s again with a corrected result.",
		verr, ExitToolName)
}

func toTokenizerMessages(messages []types.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, len(messages))
	for i, m := range messages {
		out[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}
