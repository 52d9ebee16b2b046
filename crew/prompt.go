package crew

import (
	"encoding/json"
	"strings"
)

// taskPrompt renders the user message that starts a task.
func taskPrompt(description, expected string, schema Schema, taskContext, history string) string {
	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(expected)
	b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")

	if schema != nil {
		b.WriteString("\n\nEnsure your final answer contains only the content in the following format: ")
		b.WriteString(schemaText(schema))
		b.WriteString("\n\nEnsure the final output does not include any code block markers like ```json or ```python.")
	}
	if taskContext != "" {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(taskContext)
	}
	if history != "" {
		b.WriteString("\n\nHistorical data from a previous run for this input. Treat it as a hint and verify it before use:\n")
		b.WriteString(history)
	}
	b.WriteString("\n\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!")
	return b.String()
}

// conversionPrompt asks the agent to fix an answer that failed its schema.
func conversionPrompt(schema Schema, err error) string {
	return "Your final answer could not be accepted: " + err.Error() +
		"\n\nReturn only a single JSON object matching this schema, with every required field filled in:\n" +
		schemaText(schema)
}

func schemaText(schema Schema) string {
	b, err := json.MarshalIndent(schema.JSONSchema(), "", "  ")
	if err != nil {
		return schema.Name()
	}
	return string(b)
}
