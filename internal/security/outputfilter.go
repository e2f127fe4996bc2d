package security

import (
	"github.com/orbitalhq/orbital/internal/observability"
)

// OutputFilterResult is the outcome of the output content filter gate: a
// tool's raw result content, scrubbed of any credential-like or PII
// substrings before it reaches the transcript sent back to the model.
type OutputFilterResult struct {
	Content  string
	Redacted bool
	Truncated bool
	Warnings []string
}

const maxToolOutputBytes = 1 << 20 // 1 MiB, matches the sandbox output cap

// OutputFilter redacts and truncates tool output before it is appended to
// the conversation. It shares its redaction rules with the span attribute
// redactor in internal/observability so a credential leaked through a tool
// result and one leaked through a trace attribute are caught by the same
// patterns.
type OutputFilter struct {
	redactor *observability.Redactor
	maxBytes int
}

// NewOutputFilter builds an OutputFilter with the default redaction rules
// and a 1 MiB output cap.
func NewOutputFilter() *OutputFilter {
	return &OutputFilter{redactor: observability.NewRedactor(), maxBytes: maxToolOutputBytes}
}

// Apply redacts credential/PII substrings from content, then truncates to
// the configured cap, appending a truncation marker when it trims.
func (f *OutputFilter) Apply(content string) OutputFilterResult {
	scrubbed, categories := f.redactor.RedactString(content)

	result := OutputFilterResult{Content: scrubbed}
	if len(categories) > 0 {
		result.Redacted = true
		for _, c := range categories {
			result.Warnings = append(result.Warnings, "redacted "+string(c))
		}
	}

	if len(result.Content) > f.maxBytes {
		result.Content = result.Content[:f.maxBytes] + "\n...[truncated]"
		result.Truncated = true
	}

	return result
}
