// Package ai wraps the chat-completion service that produces every
// artifact in the pipeline.
package ai

import "context"

// Role is the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat-completion conversation
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Completer produces the next message of a conversation. Implementations do
// not retry; any error is returned to the caller as-is.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, messages []Message) (string, error)

// Complete calls f
func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
