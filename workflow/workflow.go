// Package workflow runs a linear chain of named steps, the execution model
// behind a crew's sequential process.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StepFunc is the function executed by a step. It receives the previous output and returns the next output.
type StepFunc func(ctx context.Context, input any) (any, error)

// Event types emitted during Run.
const (
	EventStartStep = "start_step"
	EventEndStep   = "end_step"
	EventError     = "error"
)

// Event represents a single execution event for observability.
type Event struct {
	Type      string        `json:"type"`
	Step      string        `json:"step"`
	Index     int           `json:"index"`
	Status    string        `json:"status"` // "ok" or "error"
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Option configures workflow runs.
type Option func(*runConfig)

type runConfig struct {
	observer func(Event)
}

// WithObserver calls fn synchronously for every event.
func WithObserver(fn func(Event)) Option { return func(rc *runConfig) { rc.observer = fn } }

type step struct {
	name string
	fn   StepFunc
}

// Builder constructs a workflow using a fluent API.
type Builder struct {
	steps []*step
}

// New creates a workflow builder.
func New() *Builder { return &Builder{} }

// Step appends a step to the chain.
func (b *Builder) Step(name string, fn StepFunc) *Builder {
	b.steps = append(b.steps, &step{name: name, fn: fn})
	return b
}

// Build finalizes the workflow and returns a runnable Workflow.
func (b *Builder) Build() *Workflow {
	steps := make([]*step, len(b.steps))
	copy(steps, b.steps)
	return &Workflow{steps: steps}
}

// Workflow executes a built chain. It holds no run state and may be run
// concurrently.
type Workflow struct {
	steps []*step
}

// Steps returns the step names in execution order.
func (w *Workflow) Steps() []string {
	if w == nil {
		return nil
	}
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.name
	}
	return names
}

// StepError reports which step failed.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %q: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Run executes the steps in order, feeding each output to the next step.
// The first error stops the run.
func (w *Workflow) Run(ctx context.Context, input any, opts ...Option) (any, error) {
	rc := &runConfig{}
	for _, o := range opts {
		o(rc)
	}
	if w == nil || len(w.steps) == 0 {
		return nil, ErrNoRoot
	}

	out := input
	for i, s := range w.steps {
		if err := ctx.Err(); err != nil {
			emit(rc, Event{Type: EventError, Step: s.name, Index: i, Status: "error", Timestamp: time.Now(), Error: err.Error()})
			return nil, &StepError{Step: s.name, Index: i, Err: err}
		}

		start := time.Now()
		emit(rc, Event{Type: EventStartStep, Step: s.name, Index: i, Status: "ok", Timestamp: start})
		next, err := s.fn(ctx, out)
		if err != nil {
			emit(rc, Event{Type: EventError, Step: s.name, Index: i, Status: "error", Timestamp: time.Now(), Duration: time.Since(start), Error: err.Error()})
			return nil, &StepError{Step: s.name, Index: i, Err: err}
		}
		emit(rc, Event{Type: EventEndStep, Step: s.name, Index: i, Status: "ok", Timestamp: time.Now(), Duration: time.Since(start), Output: next})
		out = next
	}
	return out, nil
}

func emit(rc *runConfig, e Event) {
	if rc.observer != nil {
		rc.observer(e)
	}
}

// Errors
var (
	ErrNoRoot = errors.New("workflow has no steps")
)
