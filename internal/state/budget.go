package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/orbitalhq/orbital/internal/cost"
	"github.com/orbitalhq/orbital/pkg/models"
)

// Summarizer condenses older conversation turns into one synthetic system
// message. An LLM-backed implementation produces higher-quality summaries;
// Checker falls back to a deterministic truncation summary when none is
// configured.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.Message) (string, error)
}

const (
	costWarningFraction  = 0.9
	tokenCompressionFraction = 0.8
	compressionKeepLast  = 5
)

// Checker runs the budget gate at the start of every graph iteration,
// applying seven ordered checks.
type Checker struct {
	QualityThreshold float64
	Summarizer       Summarizer
}

// NewChecker builds a Checker with an optional Summarizer (nil falls back
// to deterministic truncation summaries).
func NewChecker(summarizer Summarizer) *Checker {
	return &Checker{Summarizer: summarizer}
}

// Run applies the seven ordered budget-checker steps to s, mutating it in
// place. It returns early — without reaching later steps — the moment an
// abort condition triggers.
func (c *Checker) Run(ctx context.Context, s *AgentState) {
	if s.Iterations >= s.Budget.MaxIterations {
		s.abort(fmt.Sprintf("reached max_iterations (%d)", s.Budget.MaxIterations))
		return
	}

	if s.CostSpentUSD >= s.Budget.CostLimitUSD {
		s.abort(fmt.Sprintf("cost_spent_usd (%.4f) reached cost_limit_usd (%.4f)", s.CostSpentUSD, s.Budget.CostLimitUSD))
		return
	}

	if s.Budget.CostLimitUSD > 0 && s.CostSpentUSD >= costWarningFraction*s.Budget.CostLimitUSD {
		s.Warnings = append(s.Warnings, fmt.Sprintf("approaching cost_limit_usd: %.4f of %.4f spent", s.CostSpentUSD, s.Budget.CostLimitUSD))
	}

	if len(s.ToolsUsed) >= s.Budget.MaxToolCalls {
		s.abort(fmt.Sprintf("reached max_tool_calls (%d)", s.Budget.MaxToolCalls))
		return
	}

	c.maybeCompress(ctx, s)

	s.Iterations++

	if s.NextAction == "" {
		switch {
		case s.Plan == "":
			s.NextAction = ActionPlan
		case len(s.PendingToolCalls) > 0:
			s.NextAction = ActionExecute
		default:
			s.NextAction = ActionPlan
		}
	}
}

func (s *AgentState) abort(reason string) {
	s.NextAction = ActionAbort
	s.AbortReason = reason
	if s.FinalAnswer == "" {
		s.FinalAnswer = "I had to stop early: " + reason + ". Here is what I found so far."
	}
}

func (c *Checker) maybeCompress(ctx context.Context, s *AgentState) {
	estimated := estimateMessageTokens(s.Messages)
	if s.Budget.TokenBudget <= 0 || float64(estimated) <= tokenCompressionFraction*float64(s.Budget.TokenBudget) {
		return
	}

	if len(s.Messages) <= compressionKeepLast {
		return
	}

	keepFrom := len(s.Messages) - compressionKeepLast
	older := s.Messages[:keepFrom]
	recent := s.Messages[keepFrom:]

	var summary string
	if c.Summarizer != nil {
		if text, err := c.Summarizer.Summarize(ctx, older); err == nil {
			summary = text
		}
	}
	if summary == "" {
		summary = deterministicSummary(older)
	}

	compressed := make([]models.Message, 0, len(recent)+1)
	compressed = append(compressed, models.Message{Role: models.RoleSystem, Content: summary})
	compressed = append(compressed, recent...)

	s.Messages = compressed
	s.CompressedHistory = summary
	s.CompressionCount++
}

func estimateMessageTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += cost.EstimateTokens(m.Content)
	}
	return total
}

// deterministicSummary is the no-LLM-available fallback: a truncated
// concatenation of each older message's first line, good enough to keep the
// conversation anchored without an LLM round trip.
func deterministicSummary(messages []models.Message) string {
	var b strings.Builder
	b.WriteString("Earlier conversation summary (auto-compressed):\n")
	for _, m := range messages {
		line := m.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if len(line) > 160 {
			line = line[:160] + "…"
		}
		b.WriteString("- [")
		b.WriteString(string(m.Role))
		b.WriteString("] ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
