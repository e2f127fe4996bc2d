package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/pkg/models"
)

func TestResponder_Run_UsesExistingFinalAnswer(t *testing.T) {
	s := state.New("hi", nil, state.DefaultBudget())
	s.FinalAnswer = "already answered"
	r := &Responder{}
	r.Run(context.Background(), s)
	assert.Equal(t, "already answered", s.FinalAnswer)
	assert.Equal(t, state.ActionDone, s.NextAction)
}

func TestResponder_Run_AppendsPartialResultsOnAbort(t *testing.T) {
	s := state.New("hi", nil, state.DefaultBudget())
	s.FinalAnswer = "ran out of budget"
	s.NextAction = state.ActionAbort
	s.ToolsUsed = append(s.ToolsUsed, models.ToolCallRecord{ToolName: "search", Success: true, Result: "partial data"})
	r := &Responder{}
	r.Run(context.Background(), s)
	assert.Contains(t, s.FinalAnswer, "ran out of budget")
	assert.Contains(t, s.FinalAnswer, "partial data")
}

func TestResponder_Run_ComposesFromLLM(t *testing.T) {
	s := state.New("what's the weather", nil, state.DefaultBudget())
	s.Plan = "look it up"
	s.ToolsUsed = append(s.ToolsUsed, models.ToolCallRecord{ToolName: "search", Success: true, Result: "18C and cloudy"})
	fake := &fakeLLM{responses: []llm.Completion{{Text: "It's 18C and cloudy in Paris.", InputTokens: 20, OutputTokens: 10}}}
	r := &Responder{LLM: fake}
	r.Run(context.Background(), s)

	assert.Equal(t, "It's 18C and cloudy in Paris.", s.FinalAnswer)
	assert.Equal(t, state.ActionDone, s.NextAction)
	assert.Equal(t, 30, s.TotalTokenUsage())
}

func TestResponder_Run_NoLLMFallsBackToToolSummary(t *testing.T) {
	s := state.New("hi", nil, state.DefaultBudget())
	s.ToolsUsed = append(s.ToolsUsed, models.ToolCallRecord{ToolName: "search", Success: true, Result: "42"})
	r := &Responder{}
	r.Run(context.Background(), s)
	assert.Contains(t, s.FinalAnswer, "42")
}

func TestResponder_Run_LLMErrorFallsBackToToolSummary(t *testing.T) {
	s := state.New("hi", nil, state.DefaultBudget())
	s.ToolsUsed = append(s.ToolsUsed, models.ToolCallRecord{ToolName: "search", Success: true, Result: "42"})
	fake := &fakeLLM{errs: []error{errors.New("boom")}, responses: []llm.Completion{{}}}
	r := &Responder{LLM: fake}
	r.Run(context.Background(), s)
	assert.Contains(t, s.FinalAnswer, "42")
}
