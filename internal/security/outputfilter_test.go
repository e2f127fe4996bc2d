package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputFilter_RedactsEmail(t *testing.T) {
	f := NewOutputFilter()
	result := f.Apply("contact me at jane@example.com for details")
	assert.True(t, result.Redacted)
	assert.Contains(t, result.Content, "[REDACTED_EMAIL]")
	assert.NotContains(t, result.Content, "jane@example.com")
}

func TestOutputFilter_RedactsCredentialAssignment(t *testing.T) {
	f := NewOutputFilter()
	result := f.Apply(`password=hunter2 and api_key=sk-abc123`)
	assert.True(t, result.Redacted)
	assert.NotContains(t, result.Content, "hunter2")
}

func TestOutputFilter_LeavesCleanContentUntouched(t *testing.T) {
	f := NewOutputFilter()
	result := f.Apply("the weather today is sunny")
	assert.False(t, result.Redacted)
	assert.Equal(t, "the weather today is sunny", result.Content)
}

func TestOutputFilter_TruncatesOversizedContent(t *testing.T) {
	f := &OutputFilter{redactor: NewOutputFilter().redactor, maxBytes: 10}
	result := f.Apply(strings.Repeat("a", 100))
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Content, "...[truncated]")
}
