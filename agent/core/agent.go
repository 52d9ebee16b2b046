package core

import (
	"context"
	"time"

	"github.com/KamdynS/property-crew/llm"
)

// Message represents a conversation message with role and content
type Message struct {
	Role    string            `json:"role"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Agent runs one reasoning-action loop over an input message.
type Agent interface {
	Run(ctx context.Context, input Message) (Message, error)
}

// AgentConfig holds configuration for creating agents
type AgentConfig struct {
	// Name labels logs, spans and metrics; usually the agent's role.
	Name string
	// Model, when set, is sent on every request so a router can pick the provider.
	Model         string
	MaxIterations int
	Timeout       time.Duration
	SystemPrompt  string
	Temperature   *float64
	// ResponseFormat is sent on every request when set.
	ResponseFormat *llm.ResponseFormat
}

// Result is the outcome of a conversation run.
type Result struct {
	Message    Message
	Usage      llm.Usage
	Iterations int
	ToolCalls  int
}
