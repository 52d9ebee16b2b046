// Package crew runs a team of role-playing agents through an ordered list
// of tasks. Each task's output becomes context for the tasks after it.
package crew

import (
	"fmt"
	"strings"

	"github.com/KamdynS/property-crew/llm"
	"github.com/KamdynS/property-crew/tools"
)

// Role identifies an agent within a crew.
type Role int

const (
	RoleDataSpecialist Role = iota + 1
	RoleVerifier
	RoleAmenitiesFinder
)

var roleNames = map[Role]string{
	RoleDataSpecialist:  "Real Estate Data Specialist",
	RoleVerifier:        "Real Estate Data Verification Assistant",
	RoleAmenitiesFinder: "Nearby Amenities Finder",
}

// String returns the role title the agent plays.
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// TaskKind identifies a task within a crew.
type TaskKind int

const (
	TaskPropertyDetails TaskKind = iota + 1
	TaskNearbyAmenities
	TaskVerification
)

var taskKindNames = map[TaskKind]string{
	TaskPropertyDetails: "property_details",
	TaskNearbyAmenities: "nearby_amenities",
	TaskVerification:    "verification",
}

func (k TaskKind) String() string {
	if n, ok := taskKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("TaskKind(%d)", int(k))
}

// Valid reports whether k is a known task kind.
func (k TaskKind) Valid() bool {
	_, ok := taskKindNames[k]
	return ok
}

// ToolKind names the capabilities a crew can bind.
type ToolKind int

const (
	ToolSearch ToolKind = iota + 1
	ToolScrape
)

func (k ToolKind) String() string {
	switch k {
	case ToolSearch:
		return "search"
	case ToolScrape:
		return "scrape"
	}
	return fmt.Sprintf("ToolKind(%d)", int(k))
}

// Process is the order in which a crew executes its tasks. Only the
// sequential process is implemented.
type Process int

const (
	Sequential Process = iota
)

// Agent is one crew member. Goal and Backstory may contain {input}
// placeholders.
type Agent struct {
	Role            Role
	Goal            string
	Backstory       string
	Tools           []tools.Tool
	AllowDelegation bool
	Verbose         bool
	// MaxIter bounds the tool-calling loop; 0 uses the runtime default.
	MaxIter int
	// Model overrides the runtime model for this agent.
	Model string
}

// SystemPrompt renders the agent's persona.
func (a Agent) SystemPrompt() string {
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", a.Role, a.Backstory, a.Goal)
}

// Task is one unit of work assigned to a role. Description and
// ExpectedOutput may contain {input} placeholders.
type Task struct {
	Kind           TaskKind
	Description    string
	ExpectedOutput string
	Agent          Role
	// Tools, when non-empty, replace the agent's own tools for this task.
	Tools []tools.Tool
	// OutputSchema, when set, is enforced on the final answer.
	OutputSchema Schema
}

// Inputs are the kickoff values interpolated into agent and task texts.
type Inputs map[string]string

// Interpolate replaces every {key} in s with its input value. Unknown
// placeholders are left untouched.
func (in Inputs) Interpolate(s string) string {
	if len(in) == 0 || !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(in)*2)
	for k, v := range in {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Schema describes a structured task output.
type Schema interface {
	Name() string
	JSONSchema() map[string]interface{}
	// Parse extracts, decodes and validates the object carried by raw.
	Parse(raw string) (map[string]interface{}, error)
}

type structuredSchema[T llm.Structured] struct {
	name     string
	template T
}

// SchemaFor builds a Schema from a structured Go type. Validation is the
// type's own Validate method.
func SchemaFor[T llm.Structured](name string, template T) Schema {
	return structuredSchema[T]{name: name, template: template}
}

func (s structuredSchema[T]) Name() string { return s.name }

func (s structuredSchema[T]) JSONSchema() map[string]interface{} { return s.template.JSONSchema() }

func (s structuredSchema[T]) Parse(raw string) (map[string]interface{}, error) {
	res, err := llm.ParseStructured(raw, s.template)
	if err != nil {
		return nil, err
	}
	return llm.ParseJSONObject(res.Validation.RawJSON)
}
