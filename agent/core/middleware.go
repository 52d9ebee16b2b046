package core

import (
	"context"
	"log/slog"

	"github.com/KamdynS/property-crew/llm"
)

// Middleware observes (and may veto) each step of a ChatAgent run.
// Returning an error from any hook aborts the run.
type Middleware interface {
	BeforeLLMCall(ctx context.Context, req *llm.ChatRequest) error
	AfterLLMResponse(ctx context.Context, resp *llm.Response) error
	BeforeToolExecute(ctx context.Context, toolName string, input string) error
	AfterToolExecute(ctx context.Context, toolName string, result string, execErr error) error
	AfterRun(ctx context.Context, final Message) error
}

// LoggingMiddleware writes each agent step to a slog logger. It backs the
// crew's verbose mode.
type LoggingMiddleware struct {
	Logger *slog.Logger
	Agent  string
	// MaxChars truncates logged tool results and answers; 0 means 500.
	MaxChars int
}

func (m *LoggingMiddleware) log() *slog.Logger {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("agent", m.Agent)
}

func (m *LoggingMiddleware) clip(s string) string {
	limit := m.MaxChars
	if limit <= 0 {
		limit = 500
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func (m *LoggingMiddleware) BeforeLLMCall(ctx context.Context, req *llm.ChatRequest) error {
	m.log().DebugContext(ctx, "llm call", "messages", len(req.Messages), "tools", len(req.Tools))
	return nil
}

func (m *LoggingMiddleware) AfterLLMResponse(ctx context.Context, resp *llm.Response) error {
	attrs := []any{"finish_reason", resp.FinishReason, "tool_calls", len(resp.ToolCalls)}
	if resp.Usage != nil {
		attrs = append(attrs, "tokens", resp.Usage.TotalTokens)
	}
	m.log().DebugContext(ctx, "llm response", attrs...)
	return nil
}

func (m *LoggingMiddleware) BeforeToolExecute(ctx context.Context, toolName string, input string) error {
	m.log().InfoContext(ctx, "using tool", "tool", toolName, "input", m.clip(input))
	return nil
}

func (m *LoggingMiddleware) AfterToolExecute(ctx context.Context, toolName string, result string, execErr error) error {
	if execErr != nil {
		m.log().WarnContext(ctx, "tool failed", "tool", toolName, "error", execErr)
		return nil
	}
	m.log().InfoContext(ctx, "tool observation", "tool", toolName, "result", m.clip(result))
	return nil
}

func (m *LoggingMiddleware) AfterRun(ctx context.Context, final Message) error {
	m.log().InfoContext(ctx, "final answer", "content", m.clip(final.Content))
	return nil
}

var _ Middleware = (*LoggingMiddleware)(nil)
