// Package agent runs a single bounded conversation between an LLM backend
// and a set of tools. The model finishes a run by calling the exit tool with
// its final result; an optional validator can reject that result and send
// the model back for another attempt within the same iteration budget.
package agent
