package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/property-crew/llm"
	"github.com/liushuangls/go-anthropic/v2"
)

// Client implements the llm.Client interface for Anthropic Claude. Tool
// definitions, tool_use requests and tool results map onto Messages API
// content blocks.
type Client struct {
	client  *anthropic.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds Anthropic-specific configuration
type Config struct {
	APIKey      string          `json:"api_key"`
	Model       string          `json:"model"`
	BaseURL     string          `json:"base_url,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	RetryConfig llm.RetryConfig `json:"retry_config,omitempty"`
}

// NewClient creates a new Anthropic client
func NewClient(config Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Model == "" {
		config.Model = llm.DefaultModels[llm.ProviderAnthropic]
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:  anthropic.NewClient(config.APIKey, opts...),
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if config.Model != "" {
		if err := llm.ValidateProviderModel(llm.ProviderAnthropic, config.Model); err != nil {
			return fmt.Errorf("invalid model: %w", err)
		}
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	return nil
}

// Chat implements llm.Client interface
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()
	result, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*llm.Response, error) {
		return c.chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	result.Latency = time.Since(start)
	result.Timestamp = start
	return result, nil
}

// convertMessages folds system messages into the system prompt and merges
// consecutive turns of the same role, which the Messages API rejects. Tool
// results travel as tool_result blocks in a user turn.
func convertMessages(req *llm.ChatRequest) (string, []anthropic.Message) {
	system := req.SystemPrompt
	var messages []anthropic.Message
	add := func(role anthropic.ChatRole, blocks ...anthropic.MessageContent) {
		if len(blocks) == 0 {
			return
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}
		messages = append(messages, anthropic.Message{Role: role, Content: blocks})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case "assistant":
			var blocks []anthropic.MessageContent
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseMessageContent(tc.ID, tc.Function.Name, toolArgs(tc.Function.Arguments)))
			}
			add(anthropic.RoleAssistant, blocks...)
		case "tool":
			if msg.ToolCallID != "" {
				add(anthropic.RoleUser, anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, strings.HasPrefix(msg.Content, "error:")))
			} else if msg.Content != "" {
				add(anthropic.RoleUser, anthropic.NewTextMessageContent(msg.Content))
			}
		default:
			if msg.Content != "" {
				add(anthropic.RoleUser, anthropic.NewTextMessageContent(msg.Content))
			}
		}
	}
	return system, messages
}

func toolArgs(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" || !json.Valid([]byte(args)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

var emptyObject = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}

func convertTools(req *llm.ChatRequest) ([]anthropic.ToolDefinition, *anthropic.ToolChoice) {
	if len(req.Tools) == 0 {
		return nil, nil
	}
	defs := make([]anthropic.ToolDefinition, 0, len(req.Tools))
	for _, t := range req.Tools {
		var schema any = t.Function.Parameters
		if t.Function.Parameters == nil {
			schema = emptyObject
		}
		defs = append(defs, anthropic.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema,
		})
	}
	switch choice, _ := req.ToolChoice.(string); choice {
	case "auto", "none", "any":
		return defs, &anthropic.ToolChoice{Type: choice}
	case "required":
		return defs, &anthropic.ToolChoice{Type: "any"}
	}
	return defs, nil
}

func (c *Client) chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	system, messages := convertMessages(req)
	anthReq := anthropic.MessagesRequest{
		Model:         anthropic.Model(model),
		Messages:      messages,
		System:        system,
		MaxTokens:     c.config.MaxTokens,
		StopSequences: req.Stop,
	}
	anthReq.Tools, anthReq.ToolChoice = convertTools(req)

	temp := float32(c.config.Temperature)
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}
	anthReq.Temperature = &temp
	if req.MaxTokens != nil {
		anthReq.MaxTokens = *req.MaxTokens
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		anthReq.TopP = &p
	}

	resp, err := c.client.CreateMessages(ctx, anthReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Content) == 0 {
		return nil, llm.NewLLMError(llm.ProviderAnthropic, llm.ErrorTypeUnknown, "no content returned")
	}

	var content strings.Builder
	var toolCalls []llm.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				content.WriteString(*block.Text)
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse != nil {
				toolCalls = append(toolCalls, llm.ToolCall{
					ID:       block.MessageContentToolUse.ID,
					Type:     "function",
					Function: llm.Function{Name: block.MessageContentToolUse.Name, Arguments: string(toolArgs(string(block.MessageContentToolUse.Input)))},
				})
			}
		}
	}

	var usage *llm.Usage
	if resp.Usage.OutputTokens > 0 {
		modelInfo, _ := llm.GetModel(model)
		usage = &llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Cost:         modelInfo.EstimateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		}
	}

	return &llm.Response{
		Content:      content.String(),
		Role:         "assistant",
		Model:        model,
		Provider:     llm.ProviderAnthropic,
		Usage:        usage,
		FinishReason: string(resp.StopReason),
		ToolCalls:    toolCalls,
		Meta:         map[string]string{"id": resp.ID},
	}, nil
}

// Completion implements llm.Client interface
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

// apiErrorTypes maps the Messages API error "type" field.
var apiErrorTypes = map[string]llm.ErrorType{
	"rate_limit_error":      llm.ErrorTypeRateLimit,
	"overloaded_error":      llm.ErrorTypeServerError,
	"api_error":             llm.ErrorTypeServerError,
	"authentication_error":  llm.ErrorTypeAuthentication,
	"permission_error":      llm.ErrorTypePermission,
	"not_found_error":       llm.ErrorTypeNotFound,
	"invalid_request_error": llm.ErrorTypeInvalidRequest,
}

func convertError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		typ, ok := apiErrorTypes[string(apiErr.Type)]
		if !ok {
			typ = llm.ErrorTypeUnknown
		}
		llmErr := llm.NewLLMErrorWithCause(llm.ProviderAnthropic, typ, apiErr.Message, err)
		llmErr.Code = string(apiErr.Type)
		return llmErr
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		llmErr := llm.ParseHTTPError(llm.ProviderAnthropic, reqErr.StatusCode, reqErr.Error())
		llmErr.Cause = err
		return llmErr
	}
	return llm.TransportError(llm.ProviderAnthropic, err)
}

// Model implements llm.Client interface
func (c *Client) Model() string { return c.config.Model }

// Provider implements llm.Client interface
func (c *Client) Provider() llm.Provider { return llm.ProviderAnthropic }

// Validate implements llm.Client interface
func (c *Client) Validate() error { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
