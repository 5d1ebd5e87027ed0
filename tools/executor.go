package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/fixflow/internal/metrics"
	"github.com/BaSui01/fixflow/types"
)

// Executor runs tool invocations requested within a conversation turn.
type Executor interface {
	// Execute runs all calls of one turn. Calls run concurrently; the
	// returned slice is ordered like the input and is complete — every
	// requested call has a result before Execute returns.
	Execute(ctx context.Context, calls []types.ToolCall) []types.ToolResult

	// ExecuteOne runs a single call.
	ExecuteOne(ctx context.Context, call types.ToolCall) types.ToolResult
}

// DefaultExecutor validates input against the declared shape, bounds
// execution time, and converts every failure mode (shape violation, handler
// error, panic, timeout) into a tool-level result error.
type DefaultExecutor struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// ExecutorOption configures a DefaultExecutor.
type ExecutorOption func(*DefaultExecutor)

// WithExecutorMetrics records per-tool execution counts and latency on the
// given collector.
func WithExecutorMetrics(c *metrics.Collector) ExecutorOption {
	return func(e *DefaultExecutor) { e.metrics = c }
}

// NewDefaultExecutor creates an executor over a registry.
func NewDefaultExecutor(registry *Registry, logger *zap.Logger, opts ...ExecutorOption) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &DefaultExecutor{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs all calls concurrently and waits for every one of them.
func (e *DefaultExecutor) Execute(ctx context.Context, calls []types.ToolCall) []types.ToolResult {
	results := make([]types.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(gctx, call)
			return nil
		})
	}
	// Workers never return errors; Wait is used purely as a barrier.
	_ = g.Wait()

	return results
}

// ExecuteOne validates, runs, and serializes a single tool invocation.
func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call types.ToolCall) types.ToolResult {
	result := e.executeOne(ctx, call)
	if e.metrics != nil {
		status := "ok"
		if result.IsError() {
			status = "error"
		}
		e.metrics.RecordToolExecution(call.Name, status, result.Duration)
	}
	return result
}

func (e *DefaultExecutor) executeOne(ctx context.Context, call types.ToolCall) types.ToolResult {
	start := time.Now()
	result := types.ToolResult{
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	spec, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = fmt.Sprintf("tool not found: %s", err.Error())
		result.Duration = time.Since(start)
		e.logger.Error("tool not found", zap.String("name", call.Name), zap.Error(err))
		return result
	}

	if err := e.registry.allow(call.Name); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.logger.Warn("tool rate limited", zap.String("name", call.Name))
		return result
	}

	if _, err := spec.ValidateInput(call.Arguments); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.logger.Error("invalid tool arguments",
			zap.String("name", call.Name), zap.Error(err))
		return result
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the worker can exit even when nobody receives after a
	// timeout.
	done := make(chan handlerOutcome, 1)
	go func() {
		done <- runHandler(execCtx, spec.Handler, call.Arguments)
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(out.err),
				zap.Duration("duration", result.Duration))
		} else {
			result.Result = out.res
			e.logger.Debug("tool executed",
				zap.String("name", call.Name),
				zap.Duration("duration", result.Duration))
		}

	case <-execCtx.Done():
		result.Duration = time.Since(start)
		if ctx.Err() != nil {
			result.Error = types.NewError(types.ErrCancelled, "tool invocation cancelled").Error()
		} else {
			result.Error = types.NewError(types.ErrToolTimeout,
				fmt.Sprintf("execution timeout after %s", timeout)).Error()
		}
		e.logger.Error("tool execution aborted",
			zap.String("name", call.Name),
			zap.String("error", result.Error))
	}

	return result
}

type handlerOutcome struct {
	res json.RawMessage
	err error
}

// runHandler invokes a handler and turns panics into errors so a misbehaving
// tool never escapes its own boundary.
func runHandler(ctx context.Context, h Handler, args json.RawMessage) (out handlerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = handlerOutcome{err: fmt.Errorf("tool handler panicked: %v", r)}
		}
	}()
	res, err := h(ctx, args)
	return handlerOutcome{res: res, err: err}
}

var _ Executor = (*DefaultExecutor)(nil)
