package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/property-crew/llm"
	"google.golang.org/genai"
)

// Client implements llm.Client on the Gemini API. Tools are sent as
// function declarations and tool results as functionResponse parts.
type Client struct {
	client  *genai.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds Gemini-specific configuration
type Config struct {
	APIKey      string          `json:"api_key"`
	Model       string          `json:"model"`
	BaseURL     string          `json:"base_url,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	RetryConfig llm.RetryConfig `json:"retry_config,omitempty"`
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Model == "" {
		config.Model = llm.DefaultModels[llm.ProviderGemini]
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client:  client,
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if config.Model != "" {
		if err := llm.ValidateProviderModel(llm.ProviderGemini, config.Model); err != nil {
			return fmt.Errorf("invalid model: %w", err)
		}
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
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

func convertMessages(req *llm.ChatRequest) (string, []*genai.Content) {
	system := req.SystemPrompt
	var contents []*genai.Content
	callNames := make(map[string]string)
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case "assistant":
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Function.Name
				args := map[string]any{}
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		case "tool":
			if name, ok := callNames[msg.ToolCallID]; ok {
				contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     name,
					Response: map[string]any{"output": msg.Content},
				}}}})
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}
	return system, contents
}

// toSchema converts a JSON Schema object into the OpenAPI subset Gemini
// accepts. Unsupported keywords are dropped.
func toSchema(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	s.Required = stringList(m["required"])
	s.Enum = stringList(m["enum"])
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = toSchema(items)
	}
	return s
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func convertTools(req *llm.ChatRequest, cfg *genai.GenerateContentConfig) {
	if len(req.Tools) == 0 {
		return
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
	for _, t := range req.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		})
	}
	cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

	var mode genai.FunctionCallingConfigMode
	switch choice, _ := req.ToolChoice.(string); choice {
	case "none":
		mode = genai.FunctionCallingConfigModeNone
	case "auto":
		mode = genai.FunctionCallingConfigModeAuto
	case "required", "any":
		mode = genai.FunctionCallingConfigModeAny
	default:
		return
	}
	cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode}}
}

func (c *Client) chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	system, contents := convertMessages(req)
	temp := float32(c.config.Temperature)
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:   &temp,
		StopSequences: req.Stop,
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.TopP != nil {
		p := float32(*req.TopP)
		cfg.TopP = &p
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		cfg.ResponseMIMEType = "application/json"
	}
	convertTools(req, cfg)

	result, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, convertError(err)
	}
	if len(result.Candidates) == 0 {
		return nil, llm.NewLLMError(llm.ProviderGemini, llm.ErrorTypeContentFilter, "no candidates returned")
	}

	var usage *llm.Usage
	if md := result.UsageMetadata; md != nil {
		in, out := int(md.PromptTokenCount), int(md.CandidatesTokenCount)
		modelInfo, _ := llm.GetModel(model)
		usage = &llm.Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  int(md.TotalTokenCount),
			Cost:         modelInfo.EstimateCost(in, out),
		}
	}

	var toolCalls []llm.ToolCall
	for i, fc := range result.FunctionCalls() {
		args, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:       id,
			Type:     "function",
			Function: llm.Function{Name: fc.Name, Arguments: string(args)},
		})
	}

	return &llm.Response{
		Content:      result.Text(),
		Role:         "assistant",
		Model:        model,
		Provider:     llm.ProviderGemini,
		Usage:        usage,
		FinishReason: strings.ToLower(string(result.Candidates[0].FinishReason)),
		ToolCalls:    toolCalls,
	}, nil
}

// Completion implements llm.Client interface
func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
}

func convertError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return httpError(apiErr.Code, apiErr.Message, err)
	}
	// APIError values render as "Error <code>, Message: ..."
	var code int
	if _, scanErr := fmt.Sscanf(err.Error(), "Error %d,", &code); scanErr == nil && code > 0 {
		return httpError(code, err.Error(), err)
	}

	return llm.TransportError(llm.ProviderGemini, err)
}

func httpError(code int, message string, cause error) error {
	llmErr := llm.ParseHTTPError(llm.ProviderGemini, code, message)
	llmErr.Cause = cause
	return llmErr
}

// Model implements llm.Client interface
func (c *Client) Model() string { return c.config.Model }

// Provider implements llm.Client interface
func (c *Client) Provider() llm.Provider { return llm.ProviderGemini }

// Validate implements llm.Client interface
func (c *Client) Validate() error { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
