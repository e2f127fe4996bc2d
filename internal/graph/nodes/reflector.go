package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/pkg/models"
)

const defaultQualityThreshold = 7.0
const defaultMaxReflectionRetries = 2

type reflectorResponse struct {
	QualityScore           float64           `json:"quality_score"`
	HasEnoughInfo          bool              `json:"has_enough_info"`
	NeedsDifferentApproach bool              `json:"needs_different_approach"`
	MissingInfo            string            `json:"missing_info"`
	NextToolCalls          []plannerToolCall `json:"next_tool_calls"`
	Reasoning              string            `json:"reasoning"`
}

// Reflector judges whether the tool results gathered so far are sufficient
// to answer, and otherwise routes back to execute (more tools) or plan (a
// different approach).
type Reflector struct {
	LLM              llm.Client
	Model            string
	Estimator        *cost.Estimator
	QualityThreshold float64
	MaxRetries       int
}

// Run executes the reflector node in place on s.
func (r *Reflector) Run(ctx context.Context, s *state.AgentState) {
	if r.LLM == nil {
		s.NextAction = state.ActionRespond
		return
	}

	resp, err := r.LLM.Complete(ctx, llm.Request{
		Model:  r.modelOrDefault(),
		System: r.systemPrompt(),
		Messages: []models.Message{
			{Role: models.RoleUser, Content: r.buildPrompt(s)},
		},
	})
	if err != nil {
		s.Warnings = append(s.Warnings, "reflection failed: "+err.Error())
		s.NextAction = state.ActionRespond
		return
	}

	s.AddTokenUsage("reflector", resp.InputTokens+resp.OutputTokens)
	if r.Estimator != nil {
		s.CostSpentUSD += r.Estimator.EstimateCost(resp.InputTokens, resp.OutputTokens, r.modelOrDefault())
	}

	parsed, ok := parseReflectorResponse(resp.Text)
	if !ok {
		s.NextAction = state.ActionRespond
		return
	}

	reflection := models.Reflection{
		QualityScore:           parsed.QualityScore,
		HasEnoughInfo:          parsed.HasEnoughInfo,
		NeedsDifferentApproach: parsed.NeedsDifferentApproach,
		MissingInfo:            parsed.MissingInfo,
		Reasoning:              parsed.Reasoning,
	}
	for _, tc := range parsed.NextToolCalls {
		reflection.NextToolCalls = append(reflection.NextToolCalls, models.ToolCall{Tool: tc.Tool, Input: tc.Input})
	}

	retryCount := len(s.Reflections)
	s.Reflections = append(s.Reflections, reflection)
	s.QualityScore = parsed.QualityScore

	threshold := r.QualityThreshold
	if threshold == 0 {
		threshold = defaultQualityThreshold
	}
	maxRetries := r.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxReflectionRetries
	}

	switch {
	case parsed.HasEnoughInfo && parsed.QualityScore >= threshold:
		s.NextAction = state.ActionRespond
	case len(reflection.NextToolCalls) > 0 && retryCount < maxRetries:
		s.PendingToolCalls = reflection.NextToolCalls
		s.NextAction = state.ActionExecute
	case parsed.NeedsDifferentApproach && retryCount < maxRetries:
		s.NextAction = state.ActionPlan
	default:
		s.NextAction = state.ActionRespond
	}
}

func (r *Reflector) modelOrDefault() string {
	if r.Model != "" {
		return r.Model
	}
	return "claude-sonnet-4-20250514"
}

func (r *Reflector) systemPrompt() string {
	return "You evaluate whether the tool results gathered so far are enough to answer the user. " +
		`Respond with a JSON object: {"quality_score": 0-10, "has_enough_info": bool, ` +
		`"needs_different_approach": bool, "missing_info": "...", "next_tool_calls": [{"tool": "...", "input": {...}}], "reasoning": "..."}`
}

func (r *Reflector) buildPrompt(s *state.AgentState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", s.UserInput)
	fmt.Fprintf(&b, "Plan: %s\n", s.Plan)
	b.WriteString("Tool results:\n")
	for _, rec := range s.ToolsUsed {
		status := "succeeded"
		if !rec.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", rec.ToolName, status, rec.Result)
	}
	return b.String()
}

func parseReflectorResponse(text string) (reflectorResponse, bool) {
	candidate := extractJSONObject(text)
	if candidate == "" {
		return reflectorResponse{}, false
	}
	var resp reflectorResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return reflectorResponse{}, false
	}
	return resp, true
}
