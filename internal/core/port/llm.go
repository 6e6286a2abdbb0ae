package port

import "context"

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// LLM is the inference backend: a prompt-completion server reachable over
// HTTP. Generate renders the conversation into the backend's prompt format
// and returns the completed text. Healthy reports whether the backend is
// reachable and ready; callers treat a failure as a blocking condition, not
// something to retry.
type LLM interface {
	Generate(ctx context.Context, system string, messages []Message) (string, error)
	Healthy(ctx context.Context) error
}
