package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a single LLM call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one LLM-backed step, e.g. meal plan generation.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// NewAgentMeta builds an AgentMeta whose latency is measured from started.
func NewAgentMeta(agentName string, usage TokenUsage, started time.Time) AgentMeta {
	return AgentMeta{
		AgentName: agentName,
		Usage:     usage,
		Latency:   time.Since(started),
	}
}
