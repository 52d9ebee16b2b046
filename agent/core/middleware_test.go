package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/KamdynS/property-crew/llm"
	"github.com/KamdynS/property-crew/tools"
)

// recordingMW logs hook names in call order and fails the hook named failAt.
type recordingMW struct {
	calls  []string
	failAt string
}

func (m *recordingMW) hit(name string) error {
	m.calls = append(m.calls, name)
	if name == m.failAt {
		return errors.New(name + " refused")
	}
	return nil
}

func (m *recordingMW) BeforeLLMCall(context.Context, *llm.ChatRequest) error { return m.hit("llm") }
func (m *recordingMW) AfterLLMResponse(context.Context, *llm.Response) error {
	return m.hit("llm-done")
}
func (m *recordingMW) BeforeToolExecute(_ context.Context, name, _ string) error {
	return m.hit("tool:" + name)
}
func (m *recordingMW) AfterToolExecute(_ context.Context, name, _ string, _ error) error {
	return m.hit("tool-done:" + name)
}
func (m *recordingMW) AfterRun(context.Context, Message) error { return m.hit("run-done") }

func oneToolAgent(mw Middleware) *ChatAgent {
	mock := NewMockLLMClient()
	mock.AddResponseWithToolCalls("", []llm.ToolCall{toolCall("1", "echo", `{"input":"x"}`)})
	mock.AddResponse("ok")
	return NewChatAgent(ChatConfig{
		Model:      mock,
		Tools:      tools.NewRegistry(echoTool{}),
		Config:     AgentConfig{SystemPrompt: "sys", MaxIterations: 3},
		Middleware: []Middleware{mw},
	})
}

func TestMiddlewareHookOrder(t *testing.T) {
	mw := &recordingMW{}
	if _, err := oneToolAgent(mw).Run(context.Background(), Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "llm,llm-done,tool:echo,tool-done:echo,llm,llm-done,run-done"
	if got := strings.Join(mw.calls, ","); got != want {
		t.Fatalf("hooks = %s\nwant    %s", got, want)
	}
}

func TestMiddlewareErrorStopsRun(t *testing.T) {
	for _, hook := range []string{"llm", "llm-done", "tool:echo", "run-done"} {
		t.Run(hook, func(t *testing.T) {
			mw := &recordingMW{failAt: hook}
			_, err := oneToolAgent(mw).Run(context.Background(), Message{Role: "user", Content: "hi"})
			if err == nil || !strings.Contains(err.Error(), hook+" refused") {
				t.Fatalf("err = %v", err)
			}
			if last := mw.calls[len(mw.calls)-1]; last != hook {
				t.Fatalf("hooks ran after failure: %v", mw.calls)
			}
		})
	}
}

func TestLoggingMiddleware_WritesSteps(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mw := &LoggingMiddleware{Logger: logger, Agent: "researcher", MaxChars: 4}

	mock := NewMockLLMClient()
	mock.AddResponseWithToolCalls("", []llm.ToolCall{toolCall("1", "echo", `{"input":"abcdefgh"}`)})
	mock.AddResponse("final")
	agent := NewChatAgent(ChatConfig{
		Model:      mock,
		Tools:      tools.NewRegistry(echoTool{}),
		Config:     AgentConfig{MaxIterations: 3},
		Middleware: []Middleware{mw},
	})
	if _, err := agent.Run(context.Background(), Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"agent=researcher", "using tool", "input=abcd...", "tool observation", "final answer"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
