// Package graph wires the C7 nodes into the cyclic state machine described by
// the engine's topology: budget_checker, planner, executor, reflector, and
// responder, looping until a node sets next_action to done or abort.
package graph

import "github.com/orbitalhq/orbital/pkg/models"

// EventType identifies one stage of a streamed run.
type EventType string

const (
	EventPlanning    EventType = "planning"
	EventAgentAction EventType = "agent_action"
	EventObservation EventType = "agent_observation"
	EventReflection  EventType = "reflection"
	EventContentChunk EventType = "content_chunk"
	EventTokenUsage  EventType = "token_usage"
	EventBudgetWarning EventType = "budget_warning"
)

// Event is one entry in the ordered stream emitted by StreamExecute. Exactly
// one of the typed payload fields is populated, matching Type.
type Event struct {
	Type EventType

	Plan string

	ToolCall   *models.ToolCall
	ToolResult *models.ToolCallRecord

	Reflection *models.Reflection

	Chunk      string
	ChunkFinal bool

	TokenUsage int
	CostUSD    float64

	Warning string
}

// Result is the output of a non-streaming Execute call.
type Result struct {
	Output     string
	Iterations int
	TokenUsage int
	CostUSD    float64
	ToolsUsed  []models.ToolCallRecord
	AbortReason string
}
