package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the ordered context sent to a completion
// provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a chat completion backend. Implementations must honor ctx
// cancellation; callers treat any returned error uniformly as a failed
// completion.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
