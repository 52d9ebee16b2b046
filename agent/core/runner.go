package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/property-crew/llm"
	obs "github.com/KamdynS/property-crew/observability"
	"github.com/KamdynS/property-crew/tools"
)

// ErrNoResponse is returned when the model produced no reply at all.
var ErrNoResponse = errors.New("no response from model")

const forceFinalAnswer = "You have used all allowed tool iterations. Do not call any more tools. " +
	"Give your best final answer now, using only what you have gathered so far."

// ChatAgent is the default implementation of the Agent interface
type ChatAgent struct {
	Model      llm.Client
	Tools      tools.Registry
	Middleware []Middleware
	Config     AgentConfig
}

// ChatConfig holds configuration for ChatAgent
type ChatConfig struct {
	Model      llm.Client
	Tools      tools.Registry
	Middleware []Middleware
	Config     AgentConfig
}

// NewChatAgent creates a new ChatAgent with the given configuration
func NewChatAgent(config ChatConfig) *ChatAgent {
	return &ChatAgent{
		Model:      config.Model,
		Tools:      config.Tools,
		Middleware: config.Middleware,
		Config:     config.Config,
	}
}

// Run implements the Agent interface
func (a *ChatAgent) Run(ctx context.Context, input Message) (Message, error) {
	res, err := a.RunConversation(ctx, []Message{input})
	if err != nil {
		return Message{}, err
	}
	return res.Message, nil
}

// RunConversation runs the tool loop over a caller-owned history. The system
// prompt is prepended; history itself is not modified.
func (a *ChatAgent) RunConversation(ctx context.Context, history []Message) (*Result, error) {
	span, ctx := obs.TracerImpl.StartSpan(ctx, "agent.run")
	defer span.End()
	if a.Config.Name != "" {
		span.SetAttribute("agent.name", a.Config.Name)
	}

	if a.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Timeout)
		defer cancel()
	}

	messages := make([]llm.Message, 0, len(history)+1)
	if a.Config.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: a.Config.SystemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	toolDefs := a.toolDefinitions()

	maxIterations := a.Config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	res := &Result{}
	var final *llm.Response
	for iter := 0; ; iter++ {
		req := &llm.ChatRequest{
			Messages:       messages,
			Model:          a.Config.Model,
			Temperature:    a.Config.Temperature,
			Tools:          toolDefs,
			ResponseFormat: a.Config.ResponseFormat,
		}
		exhausted := iter >= maxIterations
		if exhausted {
			req.Messages = append(append([]llm.Message{}, messages...), llm.Message{Role: "user", Content: forceFinalAnswer})
			if len(toolDefs) > 0 {
				req.ToolChoice = "none"
			}
		}

		if err := a.beforeLLM(ctx, req); err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return nil, err
		}
		response, err := a.Model.Chat(ctx, req)
		if err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		res.Iterations++
		res.Usage.Add(response.Usage)
		if err := a.afterLLM(ctx, response); err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return nil, err
		}
		final = response

		if exhausted || len(response.ToolCalls) == 0 || a.Tools == nil {
			break
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		for _, tc := range response.ToolCalls {
			result, err := a.executeTool(ctx, tc)
			if err != nil {
				span.SetStatus(obs.StatusCodeError, err.Error())
				return nil, err
			}
			res.ToolCalls++
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	if final == nil || strings.TrimSpace(final.Content) == "" {
		span.SetStatus(obs.StatusCodeError, ErrNoResponse.Error())
		return nil, ErrNoResponse
	}

	res.Message = Message{Role: "assistant", Content: final.Content}
	if err := a.afterRun(ctx, res.Message); err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		return nil, err
	}
	span.SetAttribute("agent.iterations", res.Iterations)
	span.SetStatus(obs.StatusCodeOk, "")
	return res, nil
}

func (a *ChatAgent) toolDefinitions() []llm.Tool {
	if a.Tools == nil {
		return nil
	}
	var defs []llm.Tool
	for _, name := range a.Tools.List() {
		t, ok := a.Tools.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return defs
}

// executeTool runs one requested call. Tool failures are returned to the
// model as text; only middleware errors abort the run.
func (a *ChatAgent) executeTool(ctx context.Context, tc llm.ToolCall) (string, error) {
	name := tc.Function.Name
	input := toolInput(tc.Function.Arguments)

	if err := a.beforeTool(ctx, name, input); err != nil {
		return "", err
	}

	var result string
	if _, ok := a.Tools.Get(name); !ok {
		result = fmt.Sprintf("error: tool %q not found; available tools: %s", name, strings.Join(a.Tools.List(), ", "))
		if err := a.afterTool(ctx, name, result, fmt.Errorf("tool %s not found", name)); err != nil {
			return "", err
		}
		return result, nil
	}

	result, execErr := a.Tools.Execute(ctx, name, input)
	if execErr != nil {
		result = fmt.Sprintf("error: %v", execErr)
	}
	if err := a.afterTool(ctx, name, result, execErr); err != nil {
		return "", err
	}
	return result, nil
}

// toolInput unwraps {"input": "..."} arguments; anything else is passed
// through as raw JSON for the tool to decode.
func toolInput(args string) string {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(args), &obj); err == nil && len(obj) == 1 {
		if v, ok := obj["input"].(string); ok {
			return v
		}
	}
	return args
}

func (a *ChatAgent) beforeLLM(ctx context.Context, req *llm.ChatRequest) error {
	for _, mw := range a.Middleware {
		if err := mw.BeforeLLMCall(ctx, req); err != nil {
			return fmt.Errorf("middleware: %w", err)
		}
	}
	return nil
}

func (a *ChatAgent) afterLLM(ctx context.Context, resp *llm.Response) error {
	for _, mw := range a.Middleware {
		if err := mw.AfterLLMResponse(ctx, resp); err != nil {
			return fmt.Errorf("middleware: %w", err)
		}
	}
	return nil
}

func (a *ChatAgent) beforeTool(ctx context.Context, name, input string) error {
	for _, mw := range a.Middleware {
		if err := mw.BeforeToolExecute(ctx, name, input); err != nil {
			return fmt.Errorf("middleware: %w", err)
		}
	}
	return nil
}

func (a *ChatAgent) afterTool(ctx context.Context, name, result string, execErr error) error {
	for _, mw := range a.Middleware {
		if err := mw.AfterToolExecute(ctx, name, result, execErr); err != nil {
			return fmt.Errorf("middleware: %w", err)
		}
	}
	return nil
}

func (a *ChatAgent) afterRun(ctx context.Context, final Message) error {
	for _, mw := range a.Middleware {
		if err := mw.AfterRun(ctx, final); err != nil {
			return fmt.Errorf("middleware: %w", err)
		}
	}
	return nil
}

var _ Agent = (*ChatAgent)(nil)
