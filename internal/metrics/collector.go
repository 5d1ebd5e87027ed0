// Package metrics exposes Prometheus collectors for the runner, tool
// executor, and workflow engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates all Prometheus metrics of the module.
type Collector struct {
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	toolExecutions  *prometheus.CounterVec
	toolLatency     *prometheus.HistogramVec
	agentIterations prometheus.Histogram
	agentRuns       *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	completions     *prometheus.CounterVec
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default returns the process-wide collector, registering it on the default
// Prometheus registry on first use.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// NewCollector creates a collector registered on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		backendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_backend_requests_total",
			Help: "Backend completion requests by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		backendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fixflow_backend_request_duration_seconds",
			Help:    "Backend completion latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider", "model"}),
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_tool_executions_total",
			Help: "Tool invocations by tool name and status.",
		}, []string{"tool", "status"}),
		toolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fixflow_tool_duration_seconds",
			Help:    "Tool execution latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tool"}),
		agentIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fixflow_agent_iterations",
			Help:    "Iterations consumed per agent run.",
			Buckets: prometheus.LinearBuckets(1, 1, 20),
		}),
		agentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_agent_runs_total",
			Help: "Agent runs by outcome.",
		}, []string{"agent", "outcome"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_tokens_total",
			Help: "Token consumption by model and kind (prompt/completion).",
		}, []string{"model", "kind"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_workflow_transitions_total",
			Help: "Workflow phase transitions.",
		}, []string{"from", "to"}),
		completions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixflow_workflow_completed_total",
			Help: "Completed workflows by terminal status.",
		}, []string{"status"}),
	}
}

// RecordBackendRequest records one completion round trip.
func (c *Collector) RecordBackendRequest(provider, model, status string, duration time.Duration) {
	c.backendRequests.WithLabelValues(provider, model, status).Inc()
	c.backendLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordToolExecution records one tool invocation.
func (c *Collector) RecordToolExecution(tool, status string, duration time.Duration) {
	c.toolExecutions.WithLabelValues(tool, status).Inc()
	c.toolLatency.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAgentRun records the outcome and iteration count of one run.
func (c *Collector) RecordAgentRun(agent, outcome string, iterations int) {
	c.agentRuns.WithLabelValues(agent, outcome).Inc()
	c.agentIterations.Observe(float64(iterations))
}

// RecordTokens records token consumption for one turn.
func (c *Collector) RecordTokens(model string, prompt, completion int) {
	c.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	c.tokens.WithLabelValues(model, "completion").Add(float64(completion))
}

// RecordTransition records one workflow phase transition.
func (c *Collector) RecordTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// RecordWorkflowCompleted records a workflow reaching a terminal phase.
func (c *Collector) RecordWorkflowCompleted(status string) {
	c.completions.WithLabelValues(status).Inc()
}
