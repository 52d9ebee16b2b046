package llm

import (
	"fmt"
	"sort"
)

// Model represents an LLM model with its properties
type Model struct {
	Provider     Provider     `json:"provider"`
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	ContextSize  int          `json:"context_size"`
	InputCost    float64      `json:"input_cost"`  // USD per 1M input tokens
	OutputCost   float64      `json:"output_cost"` // USD per 1M output tokens
	Capabilities Capabilities `json:"capabilities"`
}

// Provider represents LLM providers
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Capabilities represents what a model can do
type Capabilities struct {
	FunctionCalling bool `json:"function_calling"`
	JSON            bool `json:"json"`
}

// OpenAI models
const (
	ModelGPT35Turbo = "gpt-3.5-turbo"
	ModelGPT4oMini  = "gpt-4o-mini"
	ModelGPT4o      = "gpt-4o"
	ModelGPT4Turbo  = "gpt-4-turbo"
)

// Anthropic models
const (
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
)

// Gemini models
const (
	ModelGemini20Flash = "gemini-2.0-flash"
	ModelGemini15Pro   = "gemini-1.5-pro"
)

// AvailableModels is the catalog used for validation and cost estimates.
var AvailableModels = map[string]Model{
	ModelGPT35Turbo: {
		Provider: ProviderOpenAI, Name: ModelGPT35Turbo, DisplayName: "GPT-3.5 Turbo",
		ContextSize: 16385, InputCost: 0.50, OutputCost: 1.50,
		Capabilities: Capabilities{FunctionCalling: true, JSON: true},
	},
	ModelGPT4oMini: {
		Provider: ProviderOpenAI, Name: ModelGPT4oMini, DisplayName: "GPT-4o Mini",
		ContextSize: 128000, InputCost: 0.15, OutputCost: 0.60,
		Capabilities: Capabilities{FunctionCalling: true, JSON: true},
	},
	ModelGPT4o: {
		Provider: ProviderOpenAI, Name: ModelGPT4o, DisplayName: "GPT-4o",
		ContextSize: 128000, InputCost: 5.0, OutputCost: 15.0,
		Capabilities: Capabilities{FunctionCalling: true, JSON: true},
	},
	ModelGPT4Turbo: {
		Provider: ProviderOpenAI, Name: ModelGPT4Turbo, DisplayName: "GPT-4 Turbo",
		ContextSize: 128000, InputCost: 10.0, OutputCost: 30.0,
		Capabilities: Capabilities{FunctionCalling: true, JSON: true},
	},
	ModelClaude35Haiku: {
		Provider: ProviderAnthropic, Name: ModelClaude35Haiku, DisplayName: "Claude 3.5 Haiku",
		ContextSize: 200000, InputCost: 0.80, OutputCost: 4.0,
		Capabilities: Capabilities{JSON: true},
	},
	ModelClaude35Sonnet: {
		Provider: ProviderAnthropic, Name: ModelClaude35Sonnet, DisplayName: "Claude 3.5 Sonnet",
		ContextSize: 200000, InputCost: 3.0, OutputCost: 15.0,
		Capabilities: Capabilities{JSON: true},
	},
	ModelGemini20Flash: {
		Provider: ProviderGemini, Name: ModelGemini20Flash, DisplayName: "Gemini 2.0 Flash",
		ContextSize: 1048576, InputCost: 0.10, OutputCost: 0.40,
		Capabilities: Capabilities{JSON: true},
	},
	ModelGemini15Pro: {
		Provider: ProviderGemini, Name: ModelGemini15Pro, DisplayName: "Gemini 1.5 Pro",
		ContextSize: 2097152, InputCost: 1.25, OutputCost: 5.0,
		Capabilities: Capabilities{JSON: true},
	},
}

// DefaultModels maps each provider to the model used when none is configured.
var DefaultModels = map[Provider]string{
	ProviderOpenAI:    ModelGPT35Turbo,
	ProviderAnthropic: ModelClaude35Haiku,
	ProviderGemini:    ModelGemini20Flash,
}

// GetModel returns model metadata for a given model name
func GetModel(name string) (Model, error) {
	model, exists := AvailableModels[name]
	if !exists {
		return Model{}, fmt.Errorf("unknown model: %s", name)
	}
	return model, nil
}

// GetModelsByProvider returns all models for a given provider, sorted by name
func GetModelsByProvider(provider Provider) []Model {
	var models []Model
	for _, model := range AvailableModels {
		if model.Provider == provider {
			models = append(models, model)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// ValidateModel checks if a model name is valid
func ValidateModel(name string) error {
	_, err := GetModel(name)
	return err
}

// ValidateProviderModel rejects a catalog model that belongs to another
// provider. Names missing from the catalog pass; pricing for them is zero.
func ValidateProviderModel(provider Provider, name string) error {
	model, err := GetModel(name)
	if err != nil {
		return nil
	}
	if model.Provider != provider {
		return fmt.Errorf("model %s is not a %s model", name, provider)
	}
	return nil
}

// String returns a human-readable representation of the model
func (m Model) String() string {
	return fmt.Sprintf("%s (%s) - %s", m.DisplayName, m.Name, m.Provider)
}

// EstimateCost estimates the cost for given token counts
func (m Model) EstimateCost(inputTokens, outputTokens int) float64 {
	inputCost := (float64(inputTokens) / 1000000) * m.InputCost
	outputCost := (float64(outputTokens) / 1000000) * m.OutputCost
	return inputCost + outputCost
}
