// Package cost estimates USD spend for LLM calls and exposes a cheap
// character-based token estimate used for pre-call sizing.
package cost

import (
	"sort"
	"strings"
	"sync"
)

// Pricing is the (input, output) price per 1,000,000 tokens, in USD, for a
// single model tier.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

const defaultTier = "default"

// DefaultTable is the built-in pricing table. Production deployments should
// inject an updated table via NewEstimator rather than editing this map, per
// the Design Notes' "pricing needs an injection point" open question.
var DefaultTable = map[string]Pricing{
	"claude-opus":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"gpt-4":         {InputPerMillion: 30.00, OutputPerMillion: 60.00},
	"gpt-4o":        {InputPerMillion: 5.00, OutputPerMillion: 15.00},
	"gpt-4o-mini":   {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	defaultTier:     {InputPerMillion: 5.00, OutputPerMillion: 15.00},
}

// Estimator maps (model, input_tokens, output_tokens) to a USD cost. It is
// safe for concurrent use.
type Estimator struct {
	mu    sync.RWMutex
	table map[string]Pricing
	// order is the substring-match precedence for lookup: the first key in
	// order that is a substring of the queried model name wins. Longer
	// keys sort first so a more specific tier ("gpt-4o-mini") is matched
	// before a shorter one it also contains ("gpt-4"); a plain map range
	// would visit keys in a randomized order instead.
	order []string
}

// NewEstimator builds an Estimator from a custom pricing table. A nil or
// empty table falls back to DefaultTable, copied so later mutation of the
// package-level default cannot race with a live Estimator.
func NewEstimator(table map[string]Pricing) *Estimator {
	if len(table) == 0 {
		table = DefaultTable
	}
	copied := make(map[string]Pricing, len(table))
	order := make([]string, 0, len(table))
	for k, v := range table {
		copied[k] = v
		if k != defaultTier {
			order = append(order, k)
		}
	}
	sortBySpecificity(order)
	if _, ok := copied[defaultTier]; !ok {
		copied[defaultTier] = DefaultTable[defaultTier]
	}
	return &Estimator{table: copied, order: order}
}

// SetPricing installs or overrides a single model tier's pricing at runtime.
func (e *Estimator) SetPricing(model string, p Pricing) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.table[model]; !exists && model != defaultTier {
		e.order = append(e.order, model)
		sortBySpecificity(e.order)
	}
	e.table[model] = p
}

// lookup resolves a model name to a Pricing using exact match, then
// case-insensitive substring match against table keys (in deterministic,
// sorted order), then the default tier.
func (e *Estimator) lookup(model string) Pricing {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if p, ok := e.table[model]; ok {
		return p
	}
	lower := strings.ToLower(model)
	for _, key := range e.order {
		if strings.Contains(lower, strings.ToLower(key)) {
			return e.table[key]
		}
	}
	return e.table[defaultTier]
}

// sortBySpecificity orders keys longest-first, alphabetically among ties,
// so substring lookup prefers the most specific match deterministically.
func sortBySpecificity(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

// EstimateCost computes the USD cost of a call given actual or estimated
// token counts.
func (e *Estimator) EstimateCost(inputTokens, outputTokens int, model string) float64 {
	p := e.lookup(model)
	return float64(inputTokens)/1e6*p.InputPerMillion + float64(outputTokens)/1e6*p.OutputPerMillion
}

// EstimateTokens is a cheap pre-call sizing approximation: ceil(len(text)/4).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
