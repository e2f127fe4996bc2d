package security

import (
	"context"
	"encoding/json"

	"github.com/orbitalhq/orbital/internal/apperrors"
)

// GateKind identifies which of the four gates produced a verdict, so the
// containing span can attach it as a distinct attribute.
type GateKind string

const (
	GatePermission    GateKind = "permission"
	GateInputFilter   GateKind = "input_filter"
	GateSandbox       GateKind = "sandbox"
	GateOutputFilter  GateKind = "output_filter"
)

// GateVerdict is one gate's outcome, shaped for direct attachment to a
// trace span (see internal/observability).
type GateVerdict struct {
	Gate     GateKind
	Allowed  bool
	Reason   string
	Warnings []string
}

// ToolCallRequest carries what the gate chain needs to evaluate a single
// tool invocation. FilePathParam/SQLParam/CodeParam are populated by the
// caller (the executor) from the tool's decoded input when applicable;
// a tool that isn't a file/SQL/code tool leaves them empty and skips the
// corresponding input-filter check.
type ToolCallRequest struct {
	User            User
	ToolName        string
	SecurityLevel   SecurityLevel
	RawInput        json.RawMessage
	FilePathParam   string
	AllowedFileRoot []string
	SQLParam        string
	CodeParam       string
}

// Chain composes the four security gates in the mandated order: permission,
// input content filter, sandbox (code-execution tools only), output content
// filter (applied separately to the tool's result via FilterOutput).
type Chain struct {
	Permission *PermissionChecker
	Sandbox    *Sandbox
	Output     *OutputFilter
}

// NewChain builds a Chain from its three stateful gates. A nil Sandbox is
// valid for deployments with no code-execution tools registered.
func NewChain(permission *PermissionChecker, sandbox *Sandbox, output *OutputFilter) *Chain {
	if output == nil {
		output = NewOutputFilter()
	}
	return &Chain{Permission: permission, Sandbox: sandbox, Output: output}
}

// CheckCall runs gates 1-3 against an inbound tool call and returns the
// per-gate verdicts in evaluation order. It stops at the first gate that
// denies the call; later gates are reported as skipped (zero value, not
// appended) rather than evaluated, matching a short-circuiting chain.
func (c *Chain) CheckCall(ctx context.Context, req ToolCallRequest) ([]GateVerdict, error) {
	var verdicts []GateVerdict

	if c.Permission != nil {
		decision := c.Permission.CanUse(req.User, req.ToolName)
		v := GateVerdict{Gate: GatePermission, Allowed: decision.Allowed, Reason: decision.Reason}
		if decision.Warning != "" {
			v.Warnings = append(v.Warnings, decision.Warning)
		}
		verdicts = append(verdicts, v)
		if !decision.Allowed {
			return verdicts, &apperrors.UserInputError{Tool: req.ToolName, Reason: decision.Reason}
		}
	}

	if req.FilePathParam != "" {
		result := ValidateFilePath(req.FilePathParam, req.AllowedFileRoot)
		v := GateVerdict{Gate: GateInputFilter, Allowed: !result.Rejected, Reason: result.Reason, Warnings: result.Warnings}
		verdicts = append(verdicts, v)
		if result.Rejected {
			return verdicts, &apperrors.UserInputError{Tool: req.ToolName, Reason: result.Reason}
		}
	}

	if req.SQLParam != "" {
		result := ValidateSQL(req.SQLParam)
		v := GateVerdict{Gate: GateInputFilter, Allowed: !result.Rejected, Reason: result.Reason, Warnings: result.Warnings}
		verdicts = append(verdicts, v)
		if result.Rejected {
			return verdicts, &apperrors.UserInputError{Tool: req.ToolName, Reason: result.Reason}
		}
	}

	if req.CodeParam != "" {
		warnings := ValidateCodeWarnings(req.CodeParam)
		verdicts = append(verdicts, GateVerdict{Gate: GateInputFilter, Allowed: true, Warnings: warnings})

		if violations := ValidateStatic(req.CodeParam); len(violations) > 0 {
			details := make([]string, len(violations))
			for i, viol := range violations {
				details[i] = viol.String()
			}
			v := GateVerdict{Gate: GateSandbox, Allowed: false, Reason: "static validation failed"}
			verdicts = append(verdicts, v)
			return verdicts, &apperrors.SandboxViolation{Reason: joinViolations(details)}
		}
		verdicts = append(verdicts, GateVerdict{Gate: GateSandbox, Allowed: true})
	}

	return verdicts, nil
}

// FilterOutput applies gate 4 to a tool's raw result content and returns
// both the scrubbed content and its own verdict for span attachment.
func (c *Chain) FilterOutput(content string) (string, GateVerdict) {
	result := c.Output.Apply(content)
	return result.Content, GateVerdict{
		Gate:     GateOutputFilter,
		Allowed:  true,
		Warnings: result.Warnings,
	}
}

func joinViolations(details []string) string {
	out := ""
	for i, d := range details {
		if i > 0 {
			out += "; "
		}
		out += d
	}
	return out
}
