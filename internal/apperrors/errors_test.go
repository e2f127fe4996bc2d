package apperrors

import (
	"errors"
	"testing"
)

func TestUserInputError_Error(t *testing.T) {
	err := &UserInputError{Tool: "send_email", Reason: "missing field \"to\""}

	want := `invalid input for tool "send_email": missing field "to"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RetryableError{Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("should unwrap to underlying cause")
	}
	if got := err.Error(); got != "retryable: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}

func TestToolExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ToolExecutionError{Tool: "execute_python", Attempts: 3, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("should unwrap to underlying cause")
	}

	var target *ToolExecutionError
	if !errors.As(err, &target) {
		t.Fatal("should be extractable via errors.As")
	}
	if target.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", target.Attempts)
	}
}

func TestCircuitOpenError_IsErrCircuitOpen(t *testing.T) {
	err := &CircuitOpenError{Dependency: "payments-api"}

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("should be classified as ErrCircuitOpen")
	}
}

func TestBudgetExceededError_Error(t *testing.T) {
	err := &BudgetExceededError{Reason: "cost_usd 1.25 exceeds limit 1.00"}

	want := "budget exceeded: cost_usd 1.25 exceeds limit 1.00"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoopDetectedError_Error(t *testing.T) {
	err := &LoopDetectedError{AgentChain: []string{"billing", "support", "billing"}}

	got := err.Error()
	if got == "" {
		t.Fatal("error string should not be empty")
	}
}

func TestSandboxViolation_Error(t *testing.T) {
	err := &SandboxViolation{Reason: `disallowed import "os"`}

	want := `sandbox violation: disallowed import "os"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFatalInternalError_Unwrap(t *testing.T) {
	cause := errors.New("nil state pointer")
	err := &FatalInternalError{Node: "tool_executor", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("should unwrap to underlying cause")
	}
}

func TestErrorsAsClassification(t *testing.T) {
	var wrapped error = &ToolExecutionError{
		Tool:     "web_search",
		Attempts: 2,
		Cause:    &RetryableError{Cause: errors.New("timeout")},
	}

	var toolErr *ToolExecutionError
	if !errors.As(wrapped, &toolErr) {
		t.Fatal("should classify as ToolExecutionError")
	}

	var retryErr *RetryableError
	if !errors.As(wrapped, &retryErr) {
		t.Fatal("should unwrap through to the nested RetryableError")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{ErrCircuitOpen, ErrToolNotFound, ErrNoSpecialist}

	for _, err := range sentinels {
		if err == nil {
			t.Error("sentinel error should not be nil")
		}
		if err.Error() == "" {
			t.Errorf("sentinel %v should have a message", err)
		}
	}
}
