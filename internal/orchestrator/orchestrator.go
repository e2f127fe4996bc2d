// Package orchestrator runs the outer multi-agent loop above the
// single-agent graph: it routes a user message to a specialist, runs that
// specialist's graph, accepts handoff requests from the output, detects
// handoff loops, and enforces a budget shared across every specialist hop.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalhq/orbital/internal/graph"
	"github.com/orbitalhq/orbital/internal/router"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/pkg/models"
)

const (
	defaultLoopDetectionWindow = 4
	defaultMaxHandoffs         = 10
	contextTruncateLen         = 500
	contextStepsUsed           = 2
)

// ErrorType classifies why a collaboration terminated unsuccessfully.
type ErrorType string

const (
	ErrorNone          ErrorType = ""
	ErrorLoopDetected  ErrorType = "LOOP_DETECTED"
	ErrorBudgetExceeded ErrorType = "BUDGET_EXCEEDED"
	ErrorMaxIterations ErrorType = "MAX_ITERATIONS"
	ErrorNoSpecialist  ErrorType = "NO_SPECIALIST"
)

// SpecialistConfig is the immutable per-specialist configuration consulted
// by the orchestrator: its allowed tools live on the graph.Runner supplied
// per specialist, not here.
type SpecialistConfig struct {
	Type           router.SpecialistType
	MaxIterations  int
	CostLimitUSD   float64
	CanHandoffTo   map[router.SpecialistType]bool
	Runner         *graph.Runner
}

// CollaborationStep records one specialist invocation. Appended by the
// orchestrator, never mutated afterward.
type CollaborationStep struct {
	StepNumber       int
	SpecialistType   router.SpecialistType
	InputContext     string
	Output           string
	Iterations       int
	CostUSD          float64
	DurationMS       int64
	HandoffRequested router.SpecialistType
}

// CollaborationResult is the outcome of one orchestrated run.
type CollaborationResult struct {
	ID               string
	Success          bool
	FinalOutput      string
	Steps            []CollaborationStep
	TotalIterations  int
	TotalCostUSD     float64
	TotalDurationMS  int64
	AgentChain       []router.SpecialistType
	Error            string
	ErrorType        ErrorType
}

// Budget bounds total work across every specialist hop in one collaboration.
type Budget struct {
	MaxIterations       int
	CostLimitUSD        float64
	MaxHandoffs         int
	LoopDetectionWindow int
}

// DefaultBudget matches the documented defaults.
func DefaultBudget() Budget {
	return Budget{MaxIterations: 25, CostLimitUSD: 5.0, MaxHandoffs: defaultMaxHandoffs, LoopDetectionWindow: defaultLoopDetectionWindow}
}

// Orchestrator drives the handoff loop described in the package doc.
type Orchestrator struct {
	Specialists map[router.SpecialistType]*SpecialistConfig
	DefaultType router.SpecialistType
}

// NewOrchestrator builds an Orchestrator over the given specialist configs,
// keyed by their Type.
func NewOrchestrator(specialists []*SpecialistConfig) *Orchestrator {
	m := make(map[router.SpecialistType]*SpecialistConfig, len(specialists))
	for _, s := range specialists {
		m[s.Type] = s
	}
	return &Orchestrator{Specialists: m, DefaultType: router.General}
}

// Run drives the outer loop until a terminal condition: success (no further
// handoff requested), a loop is detected, or a budget is exceeded.
func (o *Orchestrator) Run(ctx context.Context, userInput string, initial router.SpecialistType, history []models.Message, budget Budget) CollaborationResult {
	collaborationID := uuid.NewString()
	if budget.LoopDetectionWindow <= 0 {
		budget.LoopDetectionWindow = defaultLoopDetectionWindow
	}
	if budget.MaxHandoffs <= 0 {
		budget.MaxHandoffs = defaultMaxHandoffs
	}

	current := initial
	chain := []router.SpecialistType{}
	steps := []CollaborationStep{}
	var totalIterations int
	var totalCostUSD float64
	var totalDuration time.Duration
	remainingCost := budget.CostLimitUSD
	handoffCount := 0
	inputContext := userInput

	for {
		chain = append(chain, current)
		if reason, bad := detectLoop(chain, budget.LoopDetectionWindow); bad {
			return CollaborationResult{
				ID: collaborationID,
				Success: false, FinalOutput: "I'm going in circles between specialists and need to stop here.",
				Steps: steps, TotalIterations: totalIterations, TotalCostUSD: totalCostUSD,
				TotalDurationMS: totalDuration.Milliseconds(), AgentChain: chain,
				Error: reason, ErrorType: ErrorLoopDetected,
			}
		}
		if totalIterations >= budget.MaxIterations {
			return o.terminateWithLastOutput(collaborationID, steps, chain, totalIterations, totalCostUSD, totalDuration, ErrorMaxIterations, "reached the maximum number of collaboration steps")
		}
		if remainingCost <= 0 {
			return o.terminateWithLastOutput(collaborationID, steps, chain, totalIterations, totalCostUSD, totalDuration, ErrorBudgetExceeded, "reached the collaboration cost limit")
		}
		if handoffCount >= budget.MaxHandoffs {
			return o.terminateWithLastOutput(collaborationID, steps, chain, totalIterations, totalCostUSD, totalDuration, ErrorBudgetExceeded, "reached the maximum number of handoffs")
		}

		specialist, ok := o.resolveSpecialist(current)
		if !ok {
			return CollaborationResult{
				ID: collaborationID,
				Success: false, FinalOutput: "No specialist is available to handle this request.",
				Steps: steps, TotalIterations: totalIterations, TotalCostUSD: totalCostUSD,
				TotalDurationMS: totalDuration.Milliseconds(), AgentChain: chain,
				Error: "no specialist registered for " + string(current) + " or GENERAL", ErrorType: ErrorNoSpecialist,
			}
		}

		stepBudget := specialistBudget(specialist, remainingCost)
		start := time.Now()
		result, err := specialist.Runner.Execute(ctx, inputContext, history, stepBudget, "")
		duration := time.Since(start)
		totalDuration += duration
		if err != nil {
			return o.terminateWithLastOutput(collaborationID, steps, chain, totalIterations, totalCostUSD, totalDuration, ErrorBudgetExceeded, err.Error())
		}

		totalIterations += result.Iterations
		totalCostUSD += result.CostUSD
		remainingCost -= result.CostUSD

		target, cleaned, requested := router.DetectHandoff(result.Output)

		step := CollaborationStep{
			StepNumber: len(steps) + 1, SpecialistType: current, InputContext: inputContext,
			Output: cleaned, Iterations: result.Iterations, CostUSD: result.CostUSD,
			DurationMS: duration.Milliseconds(),
		}
		if requested {
			step.HandoffRequested = target
		}
		steps = append(steps, step)

		if !requested || !specialist.CanHandoffTo[target] || !o.hasSpecialist(target) {
			return CollaborationResult{
				ID: collaborationID,
				Success: true, FinalOutput: cleaned, Steps: steps, TotalIterations: totalIterations,
				TotalCostUSD: totalCostUSD, TotalDurationMS: totalDuration.Milliseconds(), AgentChain: chain,
			}
		}

		inputContext = userInput + "---" + truncate(cleaned, contextTruncateLen)
		inputContext = withStepContext(inputContext, steps)
		current = target
		handoffCount++
	}
}

func (o *Orchestrator) terminateWithLastOutput(collaborationID string, steps []CollaborationStep, chain []router.SpecialistType, iterations int, cost float64, duration time.Duration, errType ErrorType, msg string) CollaborationResult {
	output := msg
	if len(steps) > 0 {
		output = steps[len(steps)-1].Output
	}
	return CollaborationResult{
		ID: collaborationID,
		Success: false, FinalOutput: output, Steps: steps, TotalIterations: iterations,
		TotalCostUSD: cost, TotalDurationMS: duration.Milliseconds(), AgentChain: chain,
		Error: msg, ErrorType: errType,
	}
}

// resolveSpecialist returns the config for t, falling back to GENERAL.
func (o *Orchestrator) resolveSpecialist(t router.SpecialistType) (*SpecialistConfig, bool) {
	if s, ok := o.Specialists[t]; ok {
		return s, true
	}
	if s, ok := o.Specialists[o.DefaultType]; ok {
		return s, true
	}
	return nil, false
}

func (o *Orchestrator) hasSpecialist(t router.SpecialistType) bool {
	_, ok := o.Specialists[t]
	return ok
}

// specialistBudget is min(specialist cap, remaining global cap), with the
// specialist's own iteration cap carried through unchanged.
func specialistBudget(s *SpecialistConfig, remainingCost float64) state.Budget {
	cost := s.CostLimitUSD
	if remainingCost < cost {
		cost = remainingCost
	}
	b := state.DefaultBudget()
	b.MaxIterations = s.MaxIterations
	b.CostLimitUSD = cost
	return b
}

// withStepContext appends up to the last two steps' outputs, truncated to
// 500 chars each, to ctx as additional prompt context.
func withStepContext(ctx string, steps []CollaborationStep) string {
	n := len(steps)
	if n == 0 {
		return ctx
	}
	start := n - contextStepsUsed
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	b.WriteString(ctx)
	for _, step := range steps[start:] {
		b.WriteString(fmt.Sprintf("\n[%s]: %s", step.SpecialistType, truncate(step.Output, contextTruncateLen)))
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// detectLoop applies the three OR'd heuristics against the chain of
// specialists visited so far (most recent last).
func detectLoop(chain []router.SpecialistType, window int) (string, bool) {
	n := len(chain)

	if n >= 3 && chain[n-3] == chain[n-1] && chain[n-3] != chain[n-2] {
		return "A-B-A pattern detected in the last three specialists", true
	}

	if n >= 2*window {
		half1 := chain[n-2*window : n-window]
		half2 := chain[n-window:]
		identical := true
		for i := range half1 {
			if half1[i] != half2[i] {
				identical = false
				break
			}
		}
		if identical {
			return "repeating handoff cycle detected", true
		}
	}

	if n >= window {
		counts := make(map[router.SpecialistType]int)
		for _, s := range chain[n-window:] {
			counts[s]++
			if counts[s] >= 3 {
				return fmt.Sprintf("specialist %s appeared 3 or more times in the last %d steps", s, window), true
			}
		}
	}

	return "", false
}
