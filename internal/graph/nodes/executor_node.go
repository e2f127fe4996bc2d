package nodes

import (
	"context"
	"encoding/json"

	"github.com/orbitalhq/orbital/internal/executor"
	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/internal/tools"
)

// ToolExecutor runs state.PendingToolCalls through the parallel tool
// executor (C5), dropping calls that would exceed the remaining tool-call
// budget before dispatch.
type ToolExecutor struct {
	Executor *executor.Executor
	Registry *tools.Registry
	User     security.User
	Model    string
}

// Run executes the executor node in place on s.
func (e *ToolExecutor) Run(ctx context.Context, s *state.AgentState) {
	remaining := s.Budget.MaxToolCalls - len(s.ToolsUsed)
	pending := s.PendingToolCalls
	if remaining < len(pending) {
		if remaining < 0 {
			remaining = 0
		}
		pending = pending[:remaining]
	}

	calls := make([]executor.Call, 0, len(pending))
	for _, tc := range pending {
		input, _ := json.Marshal(tc.Input)
		calls = append(calls, executor.Call{
			ToolName: tc.Tool,
			Input:    input,
			Priority: e.priorityFor(tc.Tool),
		})
	}

	records := e.Executor.ExecuteAll(ctx, calls, e.User, e.Model)
	s.RecordToolCalls(records)
}

// priorityFor looks up the registered tool's declared priority; an unknown
// tool defaults to normal so a stale plan can't crash dispatch ordering.
func (e *ToolExecutor) priorityFor(name string) tools.Priority {
	if e.Registry == nil {
		return tools.PriorityNormal
	}
	if t, ok := e.Registry.Get(name); ok {
		return t.Priority()
	}
	return tools.PriorityNormal
}
