package crew

import (
	"encoding/json"
	"strings"

	"github.com/KamdynS/property-crew/llm"
)

// OutputFormat tells how a task's result was produced.
type OutputFormat string

const (
	FormatRaw  OutputFormat = "raw"
	FormatJSON OutputFormat = "json"
)

// TaskOutput is the result of one executed task.
type TaskOutput struct {
	Kind         TaskKind               `json:"-"`
	Description  string                 `json:"description"`
	Summary      string                 `json:"summary"`
	Raw          string                 `json:"raw"`
	JSONDict     map[string]interface{} `json:"json_dict,omitempty"`
	Agent        string                 `json:"agent"`
	OutputFormat OutputFormat           `json:"output_format"`
}

// MarshalJSON adds the task kind by name.
func (t TaskOutput) MarshalJSON() ([]byte, error) {
	type plain TaskOutput
	return json.Marshal(struct {
		Task string `json:"task"`
		plain
	}{Task: t.Kind.String(), plain: plain(t)})
}

// UsageMetrics totals LLM usage over a crew run.
type UsageMetrics struct {
	TotalTokens        int     `json:"total_tokens"`
	PromptTokens       int     `json:"prompt_tokens"`
	CompletionTokens   int     `json:"completion_tokens"`
	SuccessfulRequests int     `json:"successful_requests"`
	Cost               float64 `json:"cost,omitempty"`
}

func (u *UsageMetrics) add(usage llm.Usage, requests int) {
	u.TotalTokens += usage.TotalTokens
	u.PromptTokens += usage.InputTokens
	u.CompletionTokens += usage.OutputTokens
	u.Cost += usage.Cost
	u.SuccessfulRequests += requests
}

// Output is the result of a crew run. Raw and JSONDict come from the last
// task.
type Output struct {
	RunID       string                 `json:"run_id"`
	Raw         string                 `json:"raw"`
	JSONDict    map[string]interface{} `json:"json_dict,omitempty"`
	TasksOutput []TaskOutput           `json:"tasks_output"`
	TokenUsage  UsageMetrics           `json:"token_usage"`
}

// FinalJSON returns the final answer as a JSON object when it is one.
func (o *Output) FinalJSON() (map[string]interface{}, bool) {
	if o.JSONDict != nil {
		return o.JSONDict, true
	}
	if obj, err := llm.ParseJSONObject(o.Raw); err == nil {
		return obj, true
	}
	return nil, false
}

// MarshalJSON emits the final JSON object when the last task produced one,
// otherwise the whole envelope.
func (o *Output) MarshalJSON() ([]byte, error) {
	if obj, ok := o.FinalJSON(); ok {
		return json.Marshal(obj)
	}
	type envelope Output
	return json.Marshal((*envelope)(o))
}

// String returns the raw final answer.
func (o *Output) String() string { return o.Raw }

func summarize(description string) string {
	words := strings.Fields(description)
	if len(words) <= 10 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:10], " ") + "..."
}
