package types

import "time"

// UsageEvent records token consumption for a single conversation turn,
// tagged by the model that produced it.
type UsageEvent struct {
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Estimated        bool      `json:"estimated,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// TotalTokens returns prompt plus completion tokens.
func (u UsageEvent) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}
