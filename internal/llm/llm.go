package llm

import (
	"context"

	"pantry-planner/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// Roles of prior conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// GenerateOptions tunes a single generation call. Zero values leave the provider default.
type GenerateOptions struct {
	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
	// JSONBiased asks the provider for a JSON response mode when it has one.
	JSONBiased        bool
	SystemInstruction string
	// History holds earlier turns, oldest first. The prompt is sent as the next user turn.
	History []Message
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
