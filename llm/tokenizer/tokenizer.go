// Package tokenizer provides token counting for usage accounting.
// The agent runner uses it to estimate turn consumption when a backend
// response carries no usage block.
package tokenizer

import (
	"fmt"
	"sync"
)

// Counter is the unified token counting interface.
type Counter interface {
	// CountTokens returns the token count for the given text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count for a message list,
	// including per-message overhead (role markers, separators).
	CountMessages(messages []Message) (int, error)

	// Name returns the counter's name.
	Name() string
}

// Message is a lightweight message structure used by the tokenizer package
// to avoid a circular dependency on the llm package.
type Message struct {
	Role    string
	Content string
}

var (
	modelCounters   = make(map[string]Counter)
	modelCountersMu sync.RWMutex
)

// Register registers a counter for the given model name.
func Register(model string, c Counter) {
	modelCountersMu.Lock()
	defer modelCountersMu.Unlock()
	modelCounters[model] = c
}

// Get returns the counter registered for the given model.
// It also tries prefix matching ("gpt-4o" matches "gpt-4o-mini").
func Get(model string) (Counter, error) {
	modelCountersMu.RLock()
	defer modelCountersMu.RUnlock()

	if c, ok := modelCounters[model]; ok {
		return c, nil
	}

	for prefix, c := range modelCounters {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModel returns the registered counter for the model, falling back to a
// tiktoken counter for recognized model families and a generic estimator
// otherwise.
func ForModel(model string) Counter {
	if c, err := Get(model); err == nil {
		return c
	}
	if c, err := NewTiktokenCounter(model); err == nil {
		return c
	}
	return NewEstimatorCounter(model)
}
