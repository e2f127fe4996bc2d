package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitalhq/orbital/internal/llm"
)

type fakeClassifierLLM struct {
	text string
	err  error
}

func (f *fakeClassifierLLM) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text}, nil
}

func testKeywords() map[SpecialistType][]string {
	return map[SpecialistType][]string{
		Research: {"research", "paper", "study"},
		Code:     {"code", "function", "bug"},
		Data:     {"dataset", "csv", "query"},
	}
}

func TestRouter_Classify_KeywordStageShortCircuitsAboveThreshold(t *testing.T) {
	r := NewRouter(testKeywords(), nil, "")
	d := r.Classify(context.Background(), "there's a bug in this function, can you fix the code")
	assert.Equal(t, Code, d.Specialist)
	assert.Equal(t, "keyword", d.Stage)
	assert.GreaterOrEqual(t, d.Confidence, 0.7)
}

func TestRouter_Classify_LowConfidenceFallsThroughToLLM(t *testing.T) {
	r := NewRouter(testKeywords(), &fakeClassifierLLM{text: "DATA"}, "claude-3")
	d := r.Classify(context.Background(), "what about the csv")
	assert.Equal(t, Data, d.Specialist)
	assert.Equal(t, "llm", d.Stage)
	assert.Equal(t, llmConfidence, d.Confidence)
}

func TestRouter_Classify_NoKeywordsNoLLMFallsBackToGeneral(t *testing.T) {
	r := NewRouter(testKeywords(), nil, "")
	d := r.Classify(context.Background(), "hello there")
	assert.Equal(t, General, d.Specialist)
	assert.Equal(t, "fallback", d.Stage)
	assert.Equal(t, fallbackKeywordConfidence, d.Confidence)
}

func TestRouter_Classify_LLMErrorFallsBackToKeywordResult(t *testing.T) {
	r := NewRouter(testKeywords(), &fakeClassifierLLM{err: assertError{}}, "claude-3")
	d := r.Classify(context.Background(), "one csv mention")
	assert.Equal(t, Data, d.Specialist)
	assert.Equal(t, "fallback", d.Stage)
}

func TestRouter_Classify_LLMUnparsableFallsBackToKeywordResult(t *testing.T) {
	r := NewRouter(testKeywords(), &fakeClassifierLLM{text: "not sure"}, "claude-3")
	d := r.Classify(context.Background(), "one csv mention")
	assert.Equal(t, Data, d.Specialist)
	assert.Equal(t, "fallback", d.Stage)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestDetectHandoff_StripsTokenAndReportsTarget(t *testing.T) {
	target, cleaned, ok := DetectHandoff("Here's what I found. NEED_RESEARCH Let me know if that helps.")
	assert.True(t, ok)
	assert.Equal(t, Research, target)
	assert.Equal(t, "Here's what I found.  Let me know if that helps.", cleaned)
}

func TestDetectHandoff_NoTokenReturnsFalse(t *testing.T) {
	_, cleaned, ok := DetectHandoff("nothing to see here")
	assert.False(t, ok)
	assert.Equal(t, "nothing to see here", cleaned)
}

func TestDetectHandoff_CaseSensitive(t *testing.T) {
	_, _, ok := DetectHandoff("need_research lowercase does not match")
	assert.False(t, ok)
}
