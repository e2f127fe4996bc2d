// Package nodes implements the four pure-ish state transformers the graph
// runner wires together: planner, executor, reflector, responder.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/memory"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/internal/tools"
	"github.com/orbitalhq/orbital/pkg/models"
)

const plannerMemoryTopK = 3

// plannerResponse is the tolerant union of the two shapes the planner's LLM
// call may return.
type plannerResponse struct {
	NeedsTools bool              `json:"needs_tools"`
	Reasoning  string            `json:"reasoning"`
	Plan       []string          `json:"plan"`
	ToolCalls  []plannerToolCall `json:"tool_calls"`
	Answer     string            `json:"answer"`
}

type plannerToolCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Planner builds the tool-aware system prompt, consults memory, and asks
// the LLM whether the turn needs tool calls or can be answered directly.
type Planner struct {
	Registry  *tools.Registry
	LLM       llm.Client
	Memory    memory.Service
	Model     string
	Estimator *cost.Estimator
}

// Run executes the planner node in place on s.
func (p *Planner) Run(ctx context.Context, s *state.AgentState) {
	if p.LLM == nil {
		s.FinalAnswer = "I'm unable to reach the language model right now, so I can't plan a response."
		s.NextAction = state.ActionRespond
		return
	}

	system := p.buildSystemPrompt(ctx, s)

	resp, err := p.LLM.Complete(ctx, llm.Request{
		Model:    p.modelOrDefault(),
		System:   system,
		Messages: s.Messages,
	})
	if err != nil {
		s.FinalAnswer = "I ran into a problem while planning how to respond: " + err.Error()
		s.NextAction = state.ActionRespond
		return
	}

	s.AddTokenUsage("planner", resp.InputTokens+resp.OutputTokens)
	if p.Estimator != nil {
		s.CostSpentUSD += p.Estimator.EstimateCost(resp.InputTokens, resp.OutputTokens, p.modelOrDefault())
	}

	parsed, ok := parsePlannerResponse(resp.Text)
	if !ok {
		// Parse failure: treat the raw text as a direct answer, and mark the
		// plan as a low-quality fallback.
		s.Plan = "low-quality: planner response was not JSON; raw text used as the answer"
		s.FinalAnswer = resp.Text
		s.NextAction = state.ActionRespond
		return
	}

	s.Plan = parsed.Reasoning

	if !parsed.NeedsTools {
		s.FinalAnswer = parsed.Answer
		s.NextAction = state.ActionRespond
		return
	}

	calls := make([]models.ToolCall, 0, len(parsed.ToolCalls))
	for _, tc := range parsed.ToolCalls {
		calls = append(calls, models.ToolCall{Tool: tc.Tool, Input: tc.Input})
	}
	s.PendingToolCalls = calls
	s.NextAction = state.ActionExecute
}

func (p *Planner) modelOrDefault() string {
	if p.Model != "" {
		return p.Model
	}
	return "claude-sonnet-4-20250514"
}

func (p *Planner) buildSystemPrompt(ctx context.Context, s *state.AgentState) string {
	var b strings.Builder
	b.WriteString("You are an assistant that can call tools to help answer the user's request.\n")
	b.WriteString("Available tools:\n")
	for _, d := range p.Registry.List() {
		fmt.Fprintf(&b, "- %s: %s (schema: %s)\n", d.Name, d.Description, string(d.InputSchema))
	}
	b.WriteString("\nRespond with a JSON object. If tools are needed: ")
	b.WriteString(`{"needs_tools": true, "reasoning": "...", "plan": ["..."], "tool_calls": [{"tool": "...", "input": {...}}]}`)
	b.WriteString(". If not: ")
	b.WriteString(`{"needs_tools": false, "reasoning": "...", "answer": "..."}`)

	if p.Memory != nil {
		items, err := p.Memory.Recall(ctx, s.UserInput, plannerMemoryTopK)
		if err == nil && len(items) > 0 {
			b.WriteString("\n\nRelevant memory:\n")
			for _, item := range items {
				fmt.Fprintf(&b, "- [%s] %s\n", item.Type, item.Content)
			}
		}
	}

	return b.String()
}

// parsePlannerResponse tolerates bare JSON, fenced JSON (```json ... ```),
// or JSON embedded in prose by extracting the widest brace-delimited span.
func parsePlannerResponse(text string) (plannerResponse, bool) {
	candidate := extractJSONObject(text)
	if candidate == "" {
		return plannerResponse{}, false
	}
	var resp plannerResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return plannerResponse{}, false
	}
	return resp, true
}

// extractJSONObject returns the widest {...} span in text, stripping
// Markdown code fences first.
func extractJSONObject(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}
