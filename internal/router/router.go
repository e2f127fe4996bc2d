// Package router classifies a user message to a specialist type: a
// keyword-scoring first stage, an optional LLM-backed second stage, and
// handoff-token detection in a specialist's own output.
package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/orbitalhq/orbital/internal/llm"
	"github.com/orbitalhq/orbital/pkg/models"
)

// SpecialistType names one of the fixed specialist roles.
type SpecialistType string

const (
	Research SpecialistType = "RESEARCH"
	Code     SpecialistType = "CODE"
	Data     SpecialistType = "DATA"
	General  SpecialistType = "GENERAL"
)

const (
	defaultKeywordConfidenceThreshold = 0.7
	llmConfidence                     = 0.85
	fallbackKeywordConfidence         = 0.3
	keywordConfidenceStep             = 0.1
	keywordConfidenceBase             = 0.5
	keywordConfidenceCap              = 0.9
)

// handoffTokens maps the case-sensitive token a specialist emits to the
// specialist it is requesting a handoff to.
var handoffTokens = map[string]SpecialistType{
	"NEED_RESEARCH": Research,
	"NEED_CODE":     Code,
	"NEED_DATA":     Data,
}

var handoffTokenPattern = regexp.MustCompile(`NEED_(RESEARCH|CODE|DATA)`)

// Decision is the outcome of a classification.
type Decision struct {
	Specialist SpecialistType
	Confidence float64
	Stage      string // "keyword", "llm", or "fallback"
}

// Router classifies input to a specialist using priority keywords per
// non-GENERAL specialist, falling back to an LLM classifier when the
// keyword stage is not confident enough.
type Router struct {
	// PriorityKeywords maps each non-GENERAL specialist to its ordered list
	// of keywords, lowercased at construction time by NewRouter.
	PriorityKeywords map[SpecialistType][]string

	// KeywordConfidenceThreshold is the minimum stage-1 confidence that
	// short-circuits stage 2. Zero means use the documented default (0.7).
	KeywordConfidenceThreshold float64

	// LLM is optional; when nil, stage 2 is skipped.
	LLM   llm.Client
	Model string
}

// NewRouter builds a Router, lowercasing all configured keywords so Classify
// can match directly against the lowercased input.
func NewRouter(keywords map[SpecialistType][]string, client llm.Client, model string) *Router {
	lowered := make(map[SpecialistType][]string, len(keywords))
	for specialist, words := range keywords {
		ws := make([]string, len(words))
		for i, w := range words {
			ws[i] = strings.ToLower(w)
		}
		lowered[specialist] = ws
	}
	return &Router{PriorityKeywords: lowered, LLM: client, Model: model}
}

func (r *Router) threshold() float64 {
	if r.KeywordConfidenceThreshold > 0 {
		return r.KeywordConfidenceThreshold
	}
	return defaultKeywordConfidenceThreshold
}

// Classify runs the two-stage classifier described above.
func (r *Router) Classify(ctx context.Context, input string) Decision {
	kwSpecialist, kwConfidence, hasKeywordMatch := r.scoreKeywords(input)

	if hasKeywordMatch && kwConfidence >= r.threshold() {
		return Decision{Specialist: kwSpecialist, Confidence: kwConfidence, Stage: "keyword"}
	}

	if r.LLM != nil {
		if specialist, ok := r.classifyWithLLM(ctx, input); ok {
			return Decision{Specialist: specialist, Confidence: llmConfidence, Stage: "llm"}
		}
	}

	if hasKeywordMatch {
		return Decision{Specialist: kwSpecialist, Confidence: kwConfidence, Stage: "fallback"}
	}
	return Decision{Specialist: General, Confidence: fallbackKeywordConfidence, Stage: "fallback"}
}

// scoreKeywords counts keyword hits per specialist against the lowercased
// input and returns the highest-scoring specialist and its confidence.
func (r *Router) scoreKeywords(input string) (SpecialistType, float64, bool) {
	lowered := strings.ToLower(input)

	var best SpecialistType
	bestHits := 0
	found := false

	for specialist, words := range r.PriorityKeywords {
		hits := 0
		for _, w := range words {
			if w != "" && strings.Contains(lowered, w) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = specialist
			found = true
		}
	}

	if !found {
		return "", 0, false
	}
	confidence := keywordConfidenceBase + float64(bestHits)*keywordConfidenceStep
	if confidence > keywordConfidenceCap {
		confidence = keywordConfidenceCap
	}
	return best, confidence, true
}

func (r *Router) classifyWithLLM(ctx context.Context, input string) (SpecialistType, bool) {
	req := llm.Request{
		Model:    r.Model,
		System:   "Classify the user's request into exactly one of RESEARCH, CODE, DATA, GENERAL. Reply with only that single word.",
		Messages: []models.Message{{Role: models.RoleUser, Content: input}},
	}
	resp, err := r.LLM.Complete(ctx, req)
	if err != nil {
		return "", false
	}
	return parseSpecialist(resp.Text)
}

func parseSpecialist(text string) (SpecialistType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(text))
	for _, candidate := range []SpecialistType{Research, Code, Data, General} {
		if strings.Contains(upper, string(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// DetectHandoff scans a specialist's raw output for a handoff token and
// returns the requested target along with the output with the token
// stripped. ok is false if no token was present.
func DetectHandoff(output string) (target SpecialistType, cleaned string, ok bool) {
	loc := handoffTokenPattern.FindStringIndex(output)
	if loc == nil {
		return "", output, false
	}
	token := output[loc[0]:loc[1]]
	target, ok = handoffTokens[token]
	if !ok {
		return "", output, false
	}
	cleaned = strings.TrimSpace(output[:loc[0]] + output[loc[1]:])
	return target, cleaned, true
}
