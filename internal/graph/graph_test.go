package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalhq/orbital/internal/executor"
	"github.com/orbitalhq/orbital/internal/graph/nodes"
	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/security"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/internal/tools"
)

type scriptedLLM struct {
	responses []llm.Completion
	calls     int
}

func (f *scriptedLLM) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i], nil
}

type graphStubTool struct{}

func (graphStubTool) Name() string                      { return "search" }
func (graphStubTool) Description() string               { return "search the web" }
func (graphStubTool) SecurityLevel() tools.SecurityLevel { return tools.SecuritySafe }
func (graphStubTool) Priority() tools.Priority           { return tools.PriorityNormal }
func (graphStubTool) Kind() tools.Kind                   { return tools.KindGeneric }
func (graphStubTool) Schema() json.RawMessage            { return json.RawMessage(`{"type":"object"}`) }
func (graphStubTool) Execute(ctx context.Context, params json.RawMessage) (*tools.Result, error) {
	return &tools.Result{Content: "18C and cloudy"}, nil
}

func newGraphRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.Register(graphStubTool{}))
	return r
}

func TestRunner_Execute_DirectAnswer(t *testing.T) {
	planner := &nodes.Planner{
		Registry: newGraphRegistry(t),
		LLM:      &scriptedLLM{responses: []llm.Completion{{Text: `{"needs_tools": false, "reasoning": "r", "answer": "4"}`}}},
	}
	runner := &Runner{
		Checker:   state.NewChecker(nil),
		Planner:   planner,
		Executor:  &nodes.ToolExecutor{},
		Reflector: &nodes.Reflector{},
		Responder: &nodes.Responder{},
	}

	result, err := runner.Execute(context.Background(), "what's 2+2", nil, state.DefaultBudget(), "")
	require.NoError(t, err)
	assert.Equal(t, "4", result.Output)
	assert.Empty(t, result.ToolsUsed)
	assert.Empty(t, result.AbortReason)
}

func TestRunner_Execute_ToolCallThenRespond(t *testing.T) {
	registry := newGraphRegistry(t)
	planner := &nodes.Planner{
		Registry: registry,
		LLM: &scriptedLLM{responses: []llm.Completion{
			{Text: `{"needs_tools": true, "reasoning": "look it up", "tool_calls": [{"tool": "search", "input": {"q": "paris weather"}}]}`},
		}},
	}
	exec := executor.New(registry, nil, nil, nil, executor.DefaultConfig())
	toolExecutor := &nodes.ToolExecutor{Executor: exec, Registry: registry, User: security.User{ID: "u1"}}
	reflector := &nodes.Reflector{
		LLM: &scriptedLLM{responses: []llm.Completion{
			{Text: `{"quality_score": 9, "has_enough_info": true, "needs_different_approach": false, "reasoning": "enough"}`},
		}},
	}
	responder := &nodes.Responder{
		LLM: &scriptedLLM{responses: []llm.Completion{{Text: "It's 18C and cloudy in Paris."}}},
	}

	runner := &Runner{
		Checker:   state.NewChecker(nil),
		Planner:   planner,
		Executor:  toolExecutor,
		Reflector: reflector,
		Responder: responder,
	}

	result, err := runner.Execute(context.Background(), "what's the weather in paris", nil, state.DefaultBudget(), "")
	require.NoError(t, err)
	assert.Equal(t, "It's 18C and cloudy in Paris.", result.Output)
	require.Len(t, result.ToolsUsed, 1)
	assert.Equal(t, "search", result.ToolsUsed[0].ToolName)
}

func TestRunner_StreamExecute_EmitsEventsInOrder(t *testing.T) {
	registry := newGraphRegistry(t)
	planner := &nodes.Planner{
		Registry: registry,
		LLM: &scriptedLLM{responses: []llm.Completion{
			{Text: `{"needs_tools": true, "reasoning": "look it up", "tool_calls": [{"tool": "search", "input": {"q": "paris weather"}}]}`},
		}},
	}
	exec := executor.New(registry, nil, nil, nil, executor.DefaultConfig())
	toolExecutor := &nodes.ToolExecutor{Executor: exec, Registry: registry}
	reflector := &nodes.Reflector{
		LLM: &scriptedLLM{responses: []llm.Completion{
			{Text: `{"quality_score": 9, "has_enough_info": true, "needs_different_approach": false, "reasoning": "enough"}`},
		}},
	}
	responder := &nodes.Responder{
		LLM: &scriptedLLM{responses: []llm.Completion{{Text: "done"}}},
	}

	runner := &Runner{
		Checker:   state.NewChecker(nil),
		Planner:   planner,
		Executor:  toolExecutor,
		Reflector: reflector,
		Responder: responder,
	}

	events, err := runner.StreamExecute(context.Background(), "what's the weather", nil, state.DefaultBudget(), "")
	require.NoError(t, err)

	var types []EventType
	for e := range events {
		types = append(types, e.Type)
	}

	require.Contains(t, types, EventPlanning)
	require.Contains(t, types, EventAgentAction)
	require.Contains(t, types, EventObservation)
	require.Contains(t, types, EventReflection)
	require.Contains(t, types, EventContentChunk)

	planIdx := indexOf(types, EventPlanning)
	actionIdx := indexOf(types, EventAgentAction)
	obsIdx := indexOf(types, EventObservation)
	reflectIdx := indexOf(types, EventReflection)
	chunkIdx := indexOf(types, EventContentChunk)

	assert.True(t, planIdx < actionIdx)
	assert.True(t, actionIdx < obsIdx)
	assert.True(t, obsIdx < reflectIdx)
	assert.True(t, reflectIdx < chunkIdx)
}

func indexOf(types []EventType, target EventType) int {
	for i, t := range types {
		if t == target {
			return i
		}
	}
	return -1
}

func TestRunner_Execute_AbortsOnBudgetAndRespondsWithPartial(t *testing.T) {
	budget := state.DefaultBudget()
	budget.MaxIterations = 0

	runner := &Runner{
		Checker:   state.NewChecker(nil),
		Planner:   &nodes.Planner{Registry: newGraphRegistry(t)},
		Executor:  &nodes.ToolExecutor{},
		Reflector: &nodes.Reflector{},
		Responder: &nodes.Responder{},
	}

	result, err := runner.Execute(context.Background(), "hi", nil, budget, "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AbortReason)
	assert.Contains(t, result.Output, "max_iterations")
}

func TestRunner_Execute_ClearsCheckpointAfterResponding(t *testing.T) {
	checkpoints := NewMemoryCheckpointer()
	planner := &nodes.Planner{
		Registry: newGraphRegistry(t),
		LLM:      &scriptedLLM{responses: []llm.Completion{{Text: `{"needs_tools": false, "reasoning": "r", "answer": "resumed"}`}}},
	}
	runner := &Runner{
		Checker:     state.NewChecker(nil),
		Planner:     planner,
		Executor:    &nodes.ToolExecutor{},
		Reflector:   &nodes.Reflector{},
		Responder:   &nodes.Responder{},
		Checkpoints: checkpoints,
	}

	result, err := runner.Execute(context.Background(), "hello", nil, state.DefaultBudget(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "resumed", result.Output)

	_, ok, _ := checkpoints.Load(context.Background(), "thread-1")
	assert.False(t, ok, "checkpoint should be cleared once the run reaches the responder")
}
