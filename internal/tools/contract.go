// Package tools defines the tool contract consumed by the graph nodes and
// the parallel executor, and a registry of tool instances keyed by tool
// name.
package tools

import (
	"context"
	"encoding/json"
)

// SecurityLevel classifies a tool's blast radius. Gates (internal/security)
// use it to decide which roles may invoke a tool and whether approval is
// required.
type SecurityLevel string

const (
	SecuritySafe      SecurityLevel = "SAFE"
	SecurityModerate  SecurityLevel = "MODERATE"
	SecurityDangerous SecurityLevel = "DANGEROUS"
	SecurityCritical  SecurityLevel = "CRITICAL"
)

// Kind classifies what a tool's input params refer to, so the executor
// knows which decoded field to hand to the input-filter / sandbox gates
// before a call reaches Execute. A tool that isn't a file, SQL, or
// code-execution tool returns KindGeneric and skips those gates.
type Kind string

const (
	KindGeneric  Kind = "generic"
	KindFileRead Kind = "file_read"
	KindSQL      Kind = "sql"
	KindCodeExec Kind = "code_exec"
)

// Priority orders tool calls within a single executor batch. Higher runs
// first; ties preserve input order (stable sort).
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
	PriorityUrgent Priority = 2
)

// Result is the output of a tool invocation.
type Result struct {
	Content string
	IsError bool
}

// Tool is the contract every registered tool implements. Name must be a
// valid function-call identifier; Schema must be JSON Schema draft-07 (the
// subset supported: type, properties, required, enum, minimum,
// maximum, minLength, maxLength).
type Tool interface {
	Name() string
	Description() string
	SecurityLevel() SecurityLevel
	Priority() Priority
	Kind() Kind
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

// Descriptor is the read-only registry entry describing a Tool, separated
// from the Tool interface so planner prompts can be built without holding a
// live tool reference.
type Descriptor struct {
	Name          string
	Description   string
	SecurityLevel SecurityLevel
	Priority      Priority
	InputSchema   json.RawMessage
}

// DescribeTool projects a Tool into its Descriptor.
func DescribeTool(t Tool) Descriptor {
	return Descriptor{
		Name:          t.Name(),
		Description:   t.Description(),
		SecurityLevel: t.SecurityLevel(),
		Priority:      t.Priority(),
		InputSchema:   t.Schema(),
	}
}
