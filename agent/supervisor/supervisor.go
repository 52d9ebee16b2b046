// Package supervisor lets one agent hand work to the other agents of its
// crew through tools.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	core "github.com/KamdynS/property-crew/agent/core"
	"github.com/KamdynS/property-crew/tools"
)

// Mode selects which delegation tool is built.
type Mode int

const (
	// Delegate hands a whole task to a coworker.
	Delegate Mode = iota
	// Ask puts a single question to a coworker.
	Ask
)

// Coworkers maps a role name to the agent that plays it.
type Coworkers map[string]core.Agent

// Roles returns the coworker role names, sorted.
func (c Coworkers) Roles() []string {
	roles := make([]string, 0, len(c))
	for r := range c {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// lookup matches a role case-insensitively, ignoring surrounding quotes and
// whitespace the model tends to add.
func (c Coworkers) lookup(name string) (core.Agent, bool) {
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
	for role, a := range c {
		if strings.ToLower(role) == name {
			return a, true
		}
	}
	return nil, false
}

// AgentTool wraps coworker agents as a tools.Tool so an agent can delegate
// to them.
type AgentTool struct {
	Mode      Mode
	Coworkers Coworkers
}

// Tools returns the delegate and ask tools for coworkers.
func Tools(coworkers Coworkers) []tools.Tool {
	return []tools.Tool{
		&AgentTool{Mode: Delegate, Coworkers: coworkers},
		&AgentTool{Mode: Ask, Coworkers: coworkers},
	}
}

func (a *AgentTool) Name() string {
	if a.Mode == Ask {
		return "ask_question_to_coworker"
	}
	return "delegate_work_to_coworker"
}

func (a *AgentTool) Description() string {
	roles := strings.Join(a.Coworkers.Roles(), ", ")
	if a.Mode == Ask {
		return "Ask a specific question to one of the following coworkers: " + roles +
			". The input to this tool should be the coworker, the question you have for them, and ALL necessary context to ask the question properly, they know nothing about the question, so share absolutely everything you know, don't reference things but instead explain them."
	}
	return "Delegate a specific task to one of the following coworkers: " + roles +
		". The input to this tool should be the coworker, the task you want them to do, and ALL necessary context to execute the task, they know nothing about the task, so share absolutely everything you know, don't reference things but instead explain them."
}

func (a *AgentTool) field() string {
	if a.Mode == Ask {
		return "question"
	}
	return "task"
}

func (a *AgentTool) Schema() map[string]interface{} {
	field := a.field()
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			field:      map[string]interface{}{"type": "string", "description": "The " + field + " for the coworker"},
			"context":  map[string]interface{}{"type": "string", "description": "Everything the coworker needs to know"},
			"coworker": map[string]interface{}{"type": "string", "description": "The role of the coworker", "enum": a.Coworkers.Roles()},
		},
		"required": []string{field, "context", "coworker"},
	}
}

type arguments struct {
	Task     string `json:"task"`
	Question string `json:"question"`
	Context  string `json:"context"`
	Coworker string `json:"coworker"`
}

// Execute runs the chosen coworker. An unknown coworker is an error, which
// the calling agent sees as tool output and can correct.
func (a *AgentTool) Execute(ctx context.Context, input string) (string, error) {
	var args arguments
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	request := args.Task
	if a.Mode == Ask {
		request = args.Question
	}
	if strings.TrimSpace(request) == "" {
		return "", fmt.Errorf("%s is required", a.field())
	}

	agent, ok := a.Coworkers.lookup(args.Coworker)
	if !ok || agent == nil {
		return "", fmt.Errorf("coworker %q not found, it must be one of: %s", args.Coworker, strings.Join(a.Coworkers.Roles(), ", "))
	}

	prompt := request
	if strings.TrimSpace(args.Context) != "" {
		prompt += "\n\nThis is the context you're working with:\n" + args.Context
	}
	out, err := agent.Run(ctx, core.Message{Role: "user", Content: prompt})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

var _ tools.Tool = (*AgentTool)(nil)
