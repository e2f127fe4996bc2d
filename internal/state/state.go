// Package state defines AgentState, the single mutable value threaded
// through one graph execution, and the budget checker that runs at the
// start of every iteration.
package state

import (
	"github.com/orbitalhq/orbital/pkg/models"
)

// NextAction is the conditional-edge selector the graph runner reads after
// every node.
type NextAction string

const (
	ActionPlan    NextAction = "plan"
	ActionExecute NextAction = "execute"
	ActionReflect NextAction = "reflect"
	ActionRespond NextAction = "respond"
	ActionAbort   NextAction = "abort"
	ActionDone    NextAction = "done"
)

// Budget holds the immutable caps for one run, set at construction and
// never mutated afterward.
type Budget struct {
	MaxIterations     int
	MaxToolCalls      int
	CostLimitUSD      float64
	TokenBudget       int
	MaxParallelTools  int
}

// DefaultBudget matches the documented defaults.
func DefaultBudget() Budget {
	return Budget{
		MaxIterations:    10,
		MaxToolCalls:     20,
		CostLimitUSD:     1.0,
		TokenBudget:      100_000,
		MaxParallelTools: 3,
	}
}

// AgentState is the value threaded through one single-agent graph
// execution. Budget counters only ever increase; the fields are set
// directly, with no setter methods.
type AgentState struct {
	Messages          []models.Message
	UserInput         string
	Plan              string
	PendingToolCalls  []models.ToolCall
	ToolsUsed         []models.ToolCallRecord
	Reflections       []models.Reflection
	QualityScore      float64
	MemoryContext     string

	Iterations    int
	TokenUsage    map[string]int
	CostSpentUSD  float64
	Budget        Budget

	CompressedHistory string
	CompressionCount  int

	NextAction  NextAction
	AbortReason string
	FinalAnswer string

	// Warnings accumulates non-fatal budget warnings (e.g. 90% cost cap)
	// surfaced to the caller without aborting the run.
	Warnings []string
}

// New constructs an AgentState for a fresh turn.
func New(userInput string, history []models.Message, budget Budget) *AgentState {
	messages := make([]models.Message, len(history), len(history)+1)
	copy(messages, history)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: userInput})

	return &AgentState{
		Messages:   messages,
		UserInput:  userInput,
		TokenUsage: make(map[string]int),
		Budget:     budget,
	}
}

// RecordToolCalls appends tool_calls' records, increments cost, and appends
// a synthetic assistant transcript entry per record — the shape C5 relies
// on after a batch completes.
func (s *AgentState) RecordToolCalls(records []models.ToolCallRecord) {
	for _, r := range records {
		s.ToolsUsed = append(s.ToolsUsed, r)
		s.CostSpentUSD += r.CostUSD

		status := "failed"
		if r.Success {
			status = "success"
		}
		s.Messages = append(s.Messages, models.Message{
			Role:    models.RoleAssistant,
			Content: "[Tool Call: " + r.ToolName + "] Status: " + status + "\n" + r.Result,
		})
	}
	s.PendingToolCalls = nil
	s.NextAction = ActionReflect
}

// AddTokenUsage tallies tokens spent at a named stage ("planner",
// "reflector", "responder", ...).
func (s *AgentState) AddTokenUsage(stage string, tokens int) {
	s.TokenUsage[stage] += tokens
}

// TotalTokenUsage sums TokenUsage across every recorded stage.
func (s *AgentState) TotalTokenUsage() int {
	total := 0
	for _, v := range s.TokenUsage {
		total += v
	}
	return total
}

// IsAborted reports whether the run has already transitioned to abort.
func (s *AgentState) IsAborted() bool {
	return s.NextAction == ActionAbort
}
