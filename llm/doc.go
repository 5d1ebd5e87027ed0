// Package llm defines the model-backend boundary used by the agent runner.
// The backend is treated as opaque: the runner performs no retry on backend
// errors, and concrete adapters live in subpackages (see openaicompat).
package llm
