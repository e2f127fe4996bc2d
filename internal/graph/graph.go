package graph

import (
	"context"

	"github.com/orbitalhq/orbital/internal/graph/nodes"
	"github.com/orbitalhq/orbital/internal/state"
	"github.com/orbitalhq/orbital/pkg/models"
)

const defaultChunkSize = 200

// phase names the node about to run. It is distinct from state.NextAction:
// NextAction records what the *previous* node decided, phase records where
// the runner is in the topology right now.
type phase string

const (
	phaseBudgetChecker phase = "budget_checker"
	phasePlanner       phase = "planner"
	phaseExecutor      phase = "executor"
	phaseReflector     phase = "reflector"
	phaseResponder     phase = "responder"
)

// Runner wires the C7 nodes into the topology: budget_checker, planner,
// executor, reflector, responder, looping between reflector and
// budget_checker until a node routes to responder.
type Runner struct {
	Checker     *state.Checker
	Planner     *nodes.Planner
	Executor    *nodes.ToolExecutor
	Reflector   *nodes.Reflector
	Responder   *nodes.Responder
	Checkpoints Checkpointer
	ChunkSize   int
}

func (r *Runner) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return defaultChunkSize
}

// Execute runs the graph to completion and returns the aggregate result.
func (r *Runner) Execute(ctx context.Context, userInput string, history []models.Message, budget state.Budget, threadID string) (Result, error) {
	s, err := r.initialState(ctx, userInput, history, budget, threadID)
	if err != nil {
		return Result{}, err
	}

	r.run(ctx, s, threadID, func(Event) {})

	return Result{
		Output:      s.FinalAnswer,
		Iterations:  s.Iterations,
		TokenUsage:  s.TotalTokenUsage(),
		CostUSD:     s.CostSpentUSD,
		ToolsUsed:   s.ToolsUsed,
		AbortReason: s.AbortReason,
	}, nil
}

// StreamExecute runs the graph to completion, emitting an ordered event
// stream on the returned channel. The channel is closed once the run
// finishes (respond or abort).
func (r *Runner) StreamExecute(ctx context.Context, userInput string, history []models.Message, budget state.Budget, threadID string) (<-chan Event, error) {
	s, err := r.initialState(ctx, userInput, history, budget, threadID)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		r.run(ctx, s, threadID, func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
	}()
	return events, nil
}

func (r *Runner) initialState(ctx context.Context, userInput string, history []models.Message, budget state.Budget, threadID string) (*state.AgentState, error) {
	if threadID != "" && r.Checkpoints != nil {
		if s, ok, err := r.Checkpoints.Load(ctx, threadID); err != nil {
			return nil, err
		} else if ok {
			s.Messages = append(s.Messages, models.Message{Role: models.RoleUser, Content: userInput})
			s.UserInput = userInput
			return s, nil
		}
	}
	return state.New(userInput, history, budget), nil
}

// run drives the node loop to completion, invoking emit for every event in
// exact node-execution order and checkpointing between node boundaries.
func (r *Runner) run(ctx context.Context, s *state.AgentState, threadID string, emit func(Event)) {
	ph := phaseBudgetChecker

	for {
		switch ph {
		case phaseBudgetChecker:
			before := len(s.Warnings)
			r.Checker.Run(ctx, s)
			for _, w := range s.Warnings[before:] {
				emit(Event{Type: EventBudgetWarning, Warning: w})
			}
			r.checkpoint(ctx, threadID, s)

			switch {
			case s.IsAborted():
				ph = phaseResponder
			case s.NextAction == state.ActionExecute:
				ph = phaseExecutor
			default:
				ph = phasePlanner
			}

		case phasePlanner:
			r.Planner.Run(ctx, s)
			emit(Event{Type: EventPlanning, Plan: s.Plan})
			emit(Event{Type: EventTokenUsage, TokenUsage: s.TotalTokenUsage(), CostUSD: s.CostSpentUSD})
			r.checkpoint(ctx, threadID, s)

			if s.NextAction == state.ActionExecute {
				ph = phaseExecutor
			} else {
				ph = phaseResponder
			}

		case phaseExecutor:
			for i := range s.PendingToolCalls {
				tc := s.PendingToolCalls[i]
				emit(Event{Type: EventAgentAction, ToolCall: &tc})
			}
			before := len(s.ToolsUsed)
			r.Executor.Run(ctx, s)
			for i := before; i < len(s.ToolsUsed); i++ {
				rec := s.ToolsUsed[i]
				emit(Event{Type: EventObservation, ToolResult: &rec})
			}
			r.checkpoint(ctx, threadID, s)
			ph = phaseReflector

		case phaseReflector:
			r.Reflector.Run(ctx, s)
			if n := len(s.Reflections); n > 0 {
				reflection := s.Reflections[n-1]
				emit(Event{Type: EventReflection, Reflection: &reflection})
			}
			emit(Event{Type: EventTokenUsage, TokenUsage: s.TotalTokenUsage(), CostUSD: s.CostSpentUSD})
			r.checkpoint(ctx, threadID, s)

			if s.NextAction == state.ActionRespond {
				ph = phaseResponder
			} else {
				ph = phaseBudgetChecker
			}

		case phaseResponder:
			r.Responder.Run(ctx, s)
			emitChunks(emit, s.FinalAnswer, r.chunkSize())
			emit(Event{Type: EventTokenUsage, TokenUsage: s.TotalTokenUsage(), CostUSD: s.CostSpentUSD})
			if threadID != "" && r.Checkpoints != nil {
				_ = r.Checkpoints.Delete(ctx, threadID)
			}
			return
		}
	}
}

func (r *Runner) checkpoint(ctx context.Context, threadID string, s *state.AgentState) {
	if threadID == "" || r.Checkpoints == nil {
		return
	}
	_ = r.Checkpoints.Save(ctx, threadID, s)
}

// emitChunks segments text into fixed-size rune chunks, marking the last one
// final. An empty string still emits a single, final, empty chunk so stream
// consumers always see a terminal marker.
func emitChunks(emit func(Event), text string, size int) {
	runes := []rune(text)
	if len(runes) == 0 {
		emit(Event{Type: EventContentChunk, Chunk: "", ChunkFinal: true})
		return
	}
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		emit(Event{
			Type:       EventContentChunk,
			Chunk:      string(runes[start:end]),
			ChunkFinal: end == len(runes),
		})
	}
}
