package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	obs "github.com/KamdynS/property-crew/observability"
)

// Tool is something an agent can call by name with a single string input.
type Tool interface {
	Name() string
	// Description is shown to the model; it should say what input to pass.
	Description() string
	Execute(ctx context.Context, input string) (string, error)
	// Schema describes the input object, or nil for free text.
	Schema() map[string]interface{}
}

// Registry is the set of tools one agent may use for one task.
type Registry interface {
	Register(tool Tool) error
	Get(name string) (Tool, bool)
	// List returns tool names in sorted order.
	List() []string
	Execute(ctx context.Context, name string, input string) (string, error)
}

// DefaultRegistry is a map-backed Registry, safe for concurrent use.
type DefaultRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry registers tools in order; on a name clash the earlier tool is kept.
func NewRegistry(tools ...Tool) *DefaultRegistry {
	r := &DefaultRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		_ = r.Register(t)
	}
	return r
}

func (r *DefaultRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[tool.Name()]; dup {
		return fmt.Errorf("tool %q already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

func (r *DefaultRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Execute runs the named tool inside a "tool.execute" span and records its
// latency, plus a tool_error count on failure.
func (r *DefaultRegistry) Execute(ctx context.Context, name string, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool %q not found", name)
	}

	span, ctx := obs.TracerImpl.StartSpan(ctx, "tool.execute")
	span.SetAttribute(obs.AttrToolName, name)
	defer span.End()

	labels := map[string]string{"tool_name": name}
	start := time.Now()
	out, err := t.Execute(ctx, input)
	obs.MetricsImpl.RecordLatency(time.Since(start), labels)
	if err != nil {
		obs.MetricsImpl.RecordError("tool_error", labels)
		span.SetStatus(obs.StatusCodeError, err.Error())
		return "", err
	}
	span.SetStatus(obs.StatusCodeOk, "")
	return out, nil
}
