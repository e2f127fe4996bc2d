package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/pkg/models"
)

// Responder produces the final answer. If the planner or an abort path
// already set one, it is used as-is; otherwise the LLM composes one from
// the accumulated plan, tool outputs, and reflection.
type Responder struct {
	LLM       llm.Client
	Model     string
	Estimator *cost.Estimator
}

// Run executes the responder node in place on s.
func (r *Responder) Run(ctx context.Context, s *state.AgentState) {
	defer func() { s.NextAction = state.ActionDone }()

	if strings.TrimSpace(s.FinalAnswer) != "" {
		if s.IsAborted() && len(s.ToolsUsed) > 0 {
			s.FinalAnswer = s.FinalAnswer + "\n\n" + r.partialResultsSummary(s)
		}
		return
	}

	if r.LLM == nil {
		s.FinalAnswer = r.bestEffortAnswer(s)
		return
	}

	resp, err := r.LLM.Complete(ctx, llm.Request{
		Model:  r.modelOrDefault(),
		System: "Compose the final answer to the user from the plan, tool results, and reflection provided. Respond in plain text, not JSON.",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: r.buildPrompt(s)},
		},
	})
	if err != nil {
		s.FinalAnswer = r.bestEffortAnswer(s)
		return
	}

	s.AddTokenUsage("responder", resp.InputTokens+resp.OutputTokens)
	if r.Estimator != nil {
		s.CostSpentUSD += r.Estimator.EstimateCost(resp.InputTokens, resp.OutputTokens, r.modelOrDefault())
	}
	s.FinalAnswer = resp.Text
}

func (r *Responder) modelOrDefault() string {
	if r.Model != "" {
		return r.Model
	}
	return "claude-sonnet-4-20250514"
}

func (r *Responder) buildPrompt(s *state.AgentState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", s.UserInput)
	fmt.Fprintf(&b, "Plan: %s\n", s.Plan)
	b.WriteString("Successful tool outputs:\n")
	for _, rec := range s.ToolsUsed {
		if rec.Success {
			fmt.Fprintf(&b, "- %s: %s\n", rec.ToolName, rec.Result)
		}
	}
	if len(s.Reflections) > 0 {
		latest := s.Reflections[len(s.Reflections)-1]
		fmt.Fprintf(&b, "Latest reflection: %s\n", latest.Reasoning)
	}
	if strings.TrimSpace(s.MemoryContext) != "" {
		fmt.Fprintf(&b, "Memory context: %s\n", s.MemoryContext)
	}
	return b.String()
}

// bestEffortAnswer composes a deterministic fallback when the LLM is
// unavailable or errors, from whatever successful tool output exists.
func (r *Responder) bestEffortAnswer(s *state.AgentState) string {
	var outputs []string
	for _, rec := range s.ToolsUsed {
		if rec.Success {
			outputs = append(outputs, rec.Result)
		}
	}
	if len(outputs) == 0 {
		return "I wasn't able to produce a complete answer for this request."
	}
	return "Here's what I found: " + strings.Join(outputs, "; ")
}

func (r *Responder) partialResultsSummary(s *state.AgentState) string {
	var outputs []string
	for _, rec := range s.ToolsUsed {
		if rec.Success {
			outputs = append(outputs, rec.Result)
		}
	}
	if len(outputs) == 0 {
		return "No partial results were gathered before stopping."
	}
	return "Partial results gathered before stopping: " + strings.Join(outputs, "; ")
}
