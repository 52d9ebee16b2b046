package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	core "github.com/KamdynS/property-crew/agent/core"
	"github.com/KamdynS/property-crew/agent/supervisor"
	"github.com/KamdynS/property-crew/llm"
	"github.com/KamdynS/property-crew/memory"
	obs "github.com/KamdynS/property-crew/observability"
	"github.com/KamdynS/property-crew/tools"
	"github.com/KamdynS/property-crew/workflow"
)

var (
	ErrNoTasks          = errors.New("crew has no tasks")
	ErrUnknownAgent     = errors.New("task assigned to an agent not in the crew")
	ErrSchemaValidation = errors.New("task output does not match its schema")
	ErrNoModel          = errors.New("crew runtime has no LLM client")
)

const (
	DefaultMaxIter         = 15
	DefaultConvertAttempts = 2
)

// Runtime carries the services a crew runs on. It is shared by all runs
// and must be safe for concurrent use.
type Runtime struct {
	LLM llm.Client
	// ShortTerm holds the outputs of the run in progress, keyed by run ID.
	ShortTerm memory.ConversationStore
	// LongTerm remembers results across runs, keyed by the "address" input.
	LongTerm memory.LongTermStore
	Logger   *slog.Logger
	// Timeout bounds a whole kickoff; 0 means no limit.
	Timeout         time.Duration
	MaxIter         int
	ConvertAttempts int
}

// Crew is a set of agents and the tasks they perform.
type Crew struct {
	Agents  []Agent
	Tasks   []Task
	Process Process
	// Memory enables the runtime's short- and long-term stores.
	Memory  bool
	Verbose bool
	Runtime *Runtime
}

var activeCrews atomic.Int64

// Validate checks the crew definition.
func (c *Crew) Validate() error {
	if len(c.Tasks) == 0 {
		return ErrNoTasks
	}
	if c.Process != Sequential {
		return fmt.Errorf("unsupported process %d", c.Process)
	}
	seen := make(map[Role]bool, len(c.Agents))
	for _, a := range c.Agents {
		if !a.Role.Valid() {
			return fmt.Errorf("invalid agent role %s", a.Role)
		}
		if seen[a.Role] {
			return fmt.Errorf("duplicate agent role %s", a.Role)
		}
		seen[a.Role] = true
	}
	for i, t := range c.Tasks {
		if !t.Kind.Valid() {
			return fmt.Errorf("task %d: invalid kind %s", i, t.Kind)
		}
		if !seen[t.Agent] {
			return fmt.Errorf("task %s: %w: %s", t.Kind, ErrUnknownAgent, t.Agent)
		}
	}
	return nil
}

// Plan returns the task pipeline as a workflow without running it, for
// inspection and diagrams.
func (c *Crew) Plan() *workflow.Workflow {
	b := workflow.New()
	for _, t := range c.Tasks {
		b.Step(t.Kind.String(), nil)
	}
	return b.Build()
}

// run is the state of one kickoff.
type run struct {
	id      string
	inputs  Inputs
	crew    *Crew
	rt      *Runtime
	log     *slog.Logger
	agents  map[Role]Agent
	outputs []TaskOutput
	usage   UsageMetrics
}

// Kickoff runs every task in order and blocks until all of them finish or
// one fails. Any failure aborts the run; no partial output is returned.
func (c *Crew) Kickoff(ctx context.Context, inputs Inputs) (*Output, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rt := c.Runtime
	if rt == nil || rt.LLM == nil {
		return nil, ErrNoModel
	}

	r := &run{
		id:     uuid.NewString(),
		inputs: inputs,
		crew:   c,
		rt:     rt,
		agents: make(map[Role]Agent, len(c.Agents)),
	}
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.log = logger.With("run_id", r.id)
	for _, a := range c.Agents {
		a.Goal = inputs.Interpolate(a.Goal)
		a.Backstory = inputs.Interpolate(a.Backstory)
		r.agents[a.Role] = a
	}

	span, ctx := obs.TracerImpl.StartSpan(ctx, "crew.kickoff")
	defer span.End()
	span.SetAttribute(obs.AttrRunID, r.id)
	obs.MetricsImpl.SetActiveAgents(int(activeCrews.Add(1)))
	defer func() { obs.MetricsImpl.SetActiveAgents(int(activeCrews.Add(-1))) }()

	if rt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Timeout)
		defer cancel()
	}
	if c.Memory && rt.ShortTerm != nil {
		defer r.forget(context.WithoutCancel(ctx))
	}

	b := workflow.New()
	for i := range c.Tasks {
		task := c.Tasks[i]
		b.Step(task.Kind.String(), func(ctx context.Context, _ any) (any, error) {
			out, err := r.execute(ctx, task)
			if err != nil {
				return nil, err
			}
			r.outputs = append(r.outputs, *out)
			return out, nil
		})
	}

	start := time.Now()
	r.log.Info("crew kickoff", "tasks", len(c.Tasks), "agents", len(c.Agents))
	_, err := b.Build().Run(ctx, nil, workflow.WithObserver(r.observe))
	if err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		obs.MetricsImpl.RecordError("crew_error", map[string]string{"component": "crew"})
		r.log.Error("crew failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	last := r.outputs[len(r.outputs)-1]
	out := &Output{
		RunID:       r.id,
		Raw:         last.Raw,
		JSONDict:    last.JSONDict,
		TasksOutput: r.outputs,
		TokenUsage:  r.usage,
	}
	span.SetAttribute("crew.tokens", r.usage.TotalTokens)
	span.SetStatus(obs.StatusCodeOk, "")
	r.log.Info("crew finished", "duration", time.Since(start), "tokens", r.usage.TotalTokens)
	return out, nil
}

func (r *run) observe(e workflow.Event) {
	if !r.crew.Verbose {
		return
	}
	switch e.Type {
	case workflow.EventStartStep:
		r.log.Info("starting task", "task", e.Step, "index", e.Index)
	case workflow.EventEndStep:
		r.log.Info("task completed", "task", e.Step, "duration", e.Duration)
	case workflow.EventError:
		r.log.Warn("task failed", "task", e.Step, "error", e.Error)
	}
}

// execute runs one task with its agent.
func (r *run) execute(ctx context.Context, task Task) (*TaskOutput, error) {
	agent := r.agents[task.Agent]
	span, ctx := obs.TracerImpl.StartSpan(ctx, "crew.task")
	defer span.End()
	span.SetAttribute(obs.AttrTaskKind, task.Kind.String())
	span.SetAttribute(obs.AttrAgentRole, agent.Role.String())

	description := r.inputs.Interpolate(task.Description)
	expected := r.inputs.Interpolate(task.ExpectedOutput)

	taskContext, err := r.priorOutputs(ctx)
	if err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		return nil, err
	}
	history := r.history(ctx, task)

	chat := r.chatAgent(agent, r.toolsFor(agent, task))
	conversation := []core.Message{{Role: "user", Content: taskPrompt(description, expected, task.OutputSchema, taskContext, history)}}

	res, err := chat.RunConversation(ctx, conversation)
	if err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		return nil, fmt.Errorf("%s: %w", agent.Role, err)
	}
	r.usage.add(res.Usage, res.Iterations)

	out := &TaskOutput{
		Kind:         task.Kind,
		Description:  description,
		Summary:      summarize(description),
		Raw:          strings.TrimSpace(res.Message.Content),
		Agent:        agent.Role.String(),
		OutputFormat: FormatRaw,
	}

	if task.OutputSchema != nil {
		obj, err := r.enforce(ctx, chat, conversation, res.Message, task.OutputSchema)
		if err != nil {
			span.SetStatus(obs.StatusCodeError, err.Error())
			return nil, fmt.Errorf("%s: %w", task.Kind, err)
		}
		out.JSONDict = obj.dict
		out.Raw = obj.raw
		out.OutputFormat = FormatJSON
	}

	if err := r.remember(ctx, task, out); err != nil {
		span.SetStatus(obs.StatusCodeError, err.Error())
		return nil, err
	}
	span.SetStatus(obs.StatusCodeOk, "")
	return out, nil
}

type structured struct {
	raw  string
	dict map[string]interface{}
}

// enforce parses the answer against schema, re-prompting the agent with the
// validation errors until the answer conforms or attempts run out.
func (r *run) enforce(ctx context.Context, chat *core.ChatAgent, conversation []core.Message, answer core.Message, schema Schema) (*structured, error) {
	attempts := r.rt.ConvertAttempts
	if attempts <= 0 {
		attempts = DefaultConvertAttempts
	}
	var converter *core.ChatAgent
	for i := 0; ; i++ {
		obj, err := schema.Parse(answer.Content)
		if err == nil {
			js, _ := llm.ExtractJSON(answer.Content)
			return &structured{raw: js, dict: obj}, nil
		}
		if i >= attempts {
			return nil, fmt.Errorf("%w: %s: %v", ErrSchemaValidation, schema.Name(), err)
		}
		r.log.Warn("output does not match schema, retrying", "schema", schema.Name(), "attempt", i+1, "error", err)
		if converter == nil {
			converter = jsonConverter(chat)
		}

		conversation = append(conversation,
			answer,
			core.Message{Role: "user", Content: conversionPrompt(schema, err)},
		)
		res, runErr := converter.RunConversation(ctx, conversation)
		if runErr != nil {
			return nil, runErr
		}
		r.usage.add(res.Usage, res.Iterations)
		answer = res.Message
	}
}

// jsonConverter is chat without tools, asking the provider for a bare JSON
// object. Schema re-prompts only reshape an answer the agent already gave.
func jsonConverter(chat *core.ChatAgent) *core.ChatAgent {
	conv := *chat
	conv.Tools = nil
	conv.Config.MaxIterations = 1
	conv.Config.ResponseFormat = &llm.ResponseFormat{Type: "json_object"}
	return &conv
}

// priorOutputs gathers the outputs of the tasks already completed in this run.
// With memory on they are read back from short-term memory.
func (r *run) priorOutputs(ctx context.Context) (string, error) {
	var parts []string
	if r.crew.Memory && r.rt.ShortTerm != nil {
		msgs, err := r.rt.ShortTerm.GetMessages(ctx, r.id)
		if err != nil {
			return "", fmt.Errorf("short-term memory: %w", err)
		}
		for _, m := range msgs {
			parts = append(parts, m.Content)
		}
	} else {
		for _, o := range r.outputs {
			parts = append(parts, o.Raw)
		}
	}
	return strings.Join(parts, "\n\n----------\n\n"), nil
}

// history loads the last remembered result of this task for the same
// address. Lookup failures only cost the hint.
func (r *run) history(ctx context.Context, task Task) string {
	address := r.inputs["address"]
	if !r.crew.Memory || r.rt.LongTerm == nil || address == "" {
		return ""
	}
	rec, err := r.rt.LongTerm.Latest(ctx, address, task.Kind.String())
	if err != nil {
		if !errors.Is(err, memory.ErrNotFound) {
			r.log.Warn("long-term memory lookup failed", "task", task.Kind.String(), "error", err)
		}
		return ""
	}
	return fmt.Sprintf("(%s) %s", rec.CreatedAt.Format(time.RFC3339), rec.Output)
}

func (r *run) remember(ctx context.Context, task Task, out *TaskOutput) error {
	if !r.crew.Memory {
		return nil
	}
	if r.rt.ShortTerm != nil {
		err := r.rt.ShortTerm.AppendMessage(ctx, r.id, memory.Message{
			Role:    out.Agent,
			Content: out.Raw,
			Meta:    map[string]string{"task": task.Kind.String()},
		})
		if err != nil {
			return fmt.Errorf("short-term memory: %w", err)
		}
	}
	if address := r.inputs["address"]; r.rt.LongTerm != nil && address != "" {
		err := r.rt.LongTerm.Save(ctx, memory.Record{
			Address: address,
			Task:    task.Kind.String(),
			Agent:   out.Agent,
			Output:  out.Raw,
		})
		if err != nil {
			return fmt.Errorf("long-term memory: %w", err)
		}
	}
	return nil
}

// forget drops the run's short-term session; only long-term records outlive
// a kickoff.
func (r *run) forget(ctx context.Context) {
	err := r.rt.ShortTerm.ClearSession(ctx, r.id)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		r.log.Warn("clear short-term memory", "error", err)
	}
}

// toolsFor resolves the tools an agent may use on task: the task's tools
// when it has any, else the agent's, plus delegation tools when allowed.
func (r *run) toolsFor(agent Agent, task Task) []tools.Tool {
	selected := agent.Tools
	if len(task.Tools) > 0 {
		selected = task.Tools
	}
	out := append([]tools.Tool(nil), selected...)
	if agent.AllowDelegation {
		coworkers := supervisor.Coworkers{}
		for role, a := range r.agents {
			if role == agent.Role {
				continue
			}
			coworkers[role.String()] = r.chatAgent(a, a.Tools)
		}
		if len(coworkers) > 0 {
			out = append(out, supervisor.Tools(coworkers)...)
		}
	}
	return out
}

func (r *run) chatAgent(agent Agent, ts []tools.Tool) *core.ChatAgent {
	maxIter := agent.MaxIter
	if maxIter <= 0 {
		maxIter = r.rt.MaxIter
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	var mws []core.Middleware
	if agent.Verbose || r.crew.Verbose {
		mws = append(mws, &core.LoggingMiddleware{Logger: r.log, Agent: agent.Role.String()})
	}
	var registry tools.Registry
	if len(ts) > 0 {
		registry = tools.NewRegistry(ts...)
	}
	return core.NewChatAgent(core.ChatConfig{
		Model:      r.rt.LLM,
		Tools:      registry,
		Middleware: mws,
		Config: core.AgentConfig{
			Name:          agent.Role.String(),
			Model:         agent.Model,
			MaxIterations: maxIter,
			SystemPrompt:  agent.SystemPrompt(),
		},
	})
}
